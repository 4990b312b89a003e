package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/arena-backend/pkg/enums"
)

type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	// JTI is generated when empty.
	JTI string
}

// AccessTokenClaims is the body of every access token the API accepts.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

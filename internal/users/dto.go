package users

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
)

// UserDTO is the transport shape of an account.
type UserDTO struct {
	ID            uuid.UUID      `json:"id"`
	Email         string         `json:"email"`
	Name          string         `json:"name"`
	Role          enums.UserRole `json:"role"`
	WalletBalance string         `json:"wallet_balance"`
	CreatedAt     time.Time      `json:"created_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email         string
	Name          string
	Role          enums.UserRole
	WalletBalance decimal.Decimal
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		WalletBalance: u.WalletBalance.StringFixed(2),
		CreatedAt:     u.CreatedAt,
	}
}

// ToModel converts the DTO to a GORM model, normalizing the email.
func (dto CreateUserDTO) ToModel() *models.User {
	role := dto.Role
	if role == "" {
		role = enums.UserRoleUser
	}
	return &models.User{
		Email:         normalizeEmail(dto.Email),
		Name:          strings.TrimSpace(dto.Name),
		Role:          role,
		WalletBalance: dto.WalletBalance,
	}
}

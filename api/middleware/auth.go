package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/arena-backend/api/responses"
	pkgAuth "github.com/angelmondragon/arena-backend/pkg/auth"
	"github.com/angelmondragon/arena-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
	"github.com/angelmondragon/arena-backend/pkg/logger"
)

// Auth requires an access token in the Authorization header and places the
// caller's id and role on the request context. The "Bearer" scheme prefix is
// optional.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, pkgAuth.ErrTokenExpired) {
					msg = "token expired"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
				return
			}

			userID := claims.UserID.String()
			ctx := WithActor(r.Context(), userID, claims.Role)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{"user_id": userID, "actor_role": string(claims.Role)})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	scheme, rest, found := strings.Cut(header, " ")
	if found && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	if found {
		return ""
	}
	return header
}

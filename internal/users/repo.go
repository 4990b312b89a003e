package users

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/internal/repo"
	dbpkg "github.com/angelmondragon/arena-backend/pkg/db"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
)

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create inserts the user. A second account on the same email is a CONFLICT.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	err := r.DB(ctx).Create(user).Error
	switch {
	case err == nil:
		return user, nil
	case dbpkg.IsUniqueViolation(err, ""):
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create user")
	}
}

// FindByEmail matches case-insensitively on the stored lowercase email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return repo.Take[models.User](r.DB(ctx), "user", "email = ?", normalizeEmail(email))
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return repo.Take[models.User](r.DB(ctx), "user", "id = ?", id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

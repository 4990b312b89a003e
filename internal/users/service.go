package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
)

type finder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Directory resolves the principals a reservation refers to.
type Directory struct {
	repo finder
}

func NewDirectory(repo finder) (*Directory, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &Directory{repo: repo}, nil
}

// RequireUser confirms the booking user exists.
func (d *Directory) RequireUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return d.repo.FindByID(ctx, id)
}

// RequirePartner confirms id names an account whose role is partner.
func (d *Directory) RequirePartner(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partner id is required")
	}
	partner, err := d.repo.FindByID(ctx, id)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "partner not found")
		}
		return nil, err
	}
	if partner.Role != enums.UserRolePartner {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "counterparty is not a partner")
	}
	return partner, nil
}

package services

import (
	"context"
	"fmt"

	"github.com/snapsolve/snapsolve/internal/core"
	"github.com/snapsolve/snapsolve/internal/models"
)

// UserService handles the identity side: upsert-on-login keyed by the
// external identity provider's id.
type UserService struct {
	db core.DbClient
}

func NewUserService(db core.DbClient) *UserService {
	return &UserService{db: db}
}

// CompleteLogin records a successful external authentication. The user row
// is created on first login and refreshed (email, name, avatar) on every
// later one.
func (s *UserService) CompleteLogin(ctx context.Context, externalID, email, name string, avatarURL *string) (*models.User, error) {
	if externalID == "" || email == "" {
		return nil, fmt.Errorf("%w: external id and email are required", core.ErrValidation)
	}
	return s.db.UpsertUserByExternalID(ctx, &models.User{
		ExternalID: externalID,
		Email:      email,
		Name:       name,
		AvatarURL:  avatarURL,
	})
}

// GetByID resolves a user id, e.g. for the current-session endpoint.
func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.db.GetUserByID(ctx, id)
}

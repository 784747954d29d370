package repository

import (
	"context"
	"errors"

	"github.com/jeseias/djezyas/internal/user/domain"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

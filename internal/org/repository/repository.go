package repository

import (
	"context"
	"errors"

	"github.com/jeseias/djezyas/internal/org/domain"
)

var ErrOrganizationNotFound = errors.New("organization not found")

type OrganizationRepository interface {
	GetOrganization(ctx context.Context, id string) (*domain.Organization, error)
	GetOrganizationsByIDs(ctx context.Context, ids []string) ([]*domain.Organization, error)
}

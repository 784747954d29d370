package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jeseias/djezyas/internal/org/domain"
)

// Organizations live in the same sqlite database as the catalog.
type sqliteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) OrganizationRepository {
	return &sqliteRepository{db: db}
}

func (r *sqliteRepository) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	query := `SELECT id, name, status, created_at FROM organizations WHERE id = ?`

	var org domain.Organization
	err := r.db.QueryRowContext(ctx, query, id).Scan(&org.ID, &org.Name, &org.Status, &org.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query organization by id: %w", err)
	}

	return &org, nil
}

func (r *sqliteRepository) GetOrganizationsByIDs(ctx context.Context, ids []string) ([]*domain.Organization, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`SELECT id, name, status, created_at FROM organizations WHERE id IN (%s)`, placeholders)

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query organizations by ids: %w", err)
	}
	defer rows.Close()

	var orgs []*domain.Organization
	for rows.Next() {
		var org domain.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Status, &org.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan organization row: %w", err)
		}
		orgs = append(orgs, &org)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orgs, nil
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jeseias/djezyas/internal/payment/domain"
	"github.com/jeseias/djezyas/internal/postgres"
)

const intentColumns = `id, user_id, order_ids, amount, currency, provider, status,
	provider_reference, transaction_ids, expires_at, metadata, created_at, updated_at`

type Repository struct {
	db *postgres.DB
}

func NewRepository(db *postgres.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, intent *domain.PaymentIntent) error {
	metadataJSON, err := json.Marshal(intent.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal intent metadata: %w", err)
	}

	query := `INSERT INTO payment_intents (` + intentColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`

	_, insertErr := r.db.Q(ctx).ExecContext(ctx, query,
		intent.ID,
		intent.UserID,
		pq.Array(intent.OrderIDs),
		intent.Amount,
		intent.Currency,
		intent.Provider,
		intent.Status,
		intent.ProviderReference,
		pq.Array(intent.TransactionIDs),
		intent.ExpiresAt,
		metadataJSON)
	if insertErr != nil {
		return fmt.Errorf("insert payment intent: %w", insertErr)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, intent *domain.PaymentIntent) error {
	metadataJSON, err := json.Marshal(intent.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal intent metadata: %w", err)
	}

	query := `UPDATE payment_intents SET
	            status = $2,
	            transaction_ids = $3,
	            expires_at = $4,
	            metadata = $5,
	            updated_at = NOW()
	          WHERE id = $1`

	result, err := r.db.Q(ctx).ExecContext(ctx, query,
		intent.ID,
		intent.Status,
		pq.Array(intent.TransactionIDs),
		intent.ExpiresAt,
		metadataJSON)
	if err != nil {
		return fmt.Errorf("update payment intent: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update intent rows affected: %w", err)
	}
	if affected == 0 {
		return ErrIntentNotFound
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE id = $1`

	intent, err := scanIntent(r.db.Q(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIntentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query intent by id: %w", err)
	}
	return intent, nil
}

func (r *Repository) GetByProviderReference(ctx context.Context, reference string) (*domain.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE provider_reference = $1`

	intent, err := scanIntent(r.db.Q(ctx).QueryRowContext(ctx, query, reference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIntentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query intent by provider reference: %w", err)
	}
	return intent, nil
}

func (r *Repository) ListPending(ctx context.Context, limit int) ([]*domain.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents
	          WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	return r.queryIntents(ctx, query, domain.IntentStatusPending, limit)
}

func (r *Repository) ListExpiredBefore(ctx context.Context, cutoff time.Time) ([]*domain.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents
	          WHERE status = $1 AND expires_at IS NOT NULL AND expires_at < $2`
	return r.queryIntents(ctx, query, domain.IntentStatusPending, cutoff)
}

func (r *Repository) queryIntents(ctx context.Context, query string, args ...any) ([]*domain.PaymentIntent, error) {
	rows, err := r.db.Q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query payment intents: %w", err)
	}
	defer rows.Close()

	var intents []*domain.PaymentIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intent row: %w", err)
		}
		intents = append(intents, intent)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return intents, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntent(row rowScanner) (*domain.PaymentIntent, error) {
	var (
		intent       domain.PaymentIntent
		metadataJSON []byte
	)

	err := row.Scan(
		&intent.ID,
		&intent.UserID,
		pq.Array(&intent.OrderIDs),
		&intent.Amount,
		&intent.Currency,
		&intent.Provider,
		&intent.Status,
		&intent.ProviderReference,
		pq.Array(&intent.TransactionIDs),
		&intent.ExpiresAt,
		&metadataJSON,
		&intent.CreatedAt,
		&intent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &intent.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal intent metadata: %w", err)
		}
	}
	if intent.Metadata == nil {
		intent.Metadata = map[string]string{}
	}

	return &intent, nil
}

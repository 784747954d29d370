package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jeseias/djezyas/internal/order/domain"
	"github.com/jeseias/djezyas/internal/postgres"
)

const orderColumns = `id, code, user_id, organization_id, items, total_amount, currency,
	payment_status, fulfillment_status, payment_intent_ids, transaction_id,
	client_confirmed_delivery, paid_at, cancelled_at, expired_at, meta, created_at, updated_at`

type Repository struct {
	db *postgres.DB
}

func NewRepository(db *postgres.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	metaJSON, err := json.Marshal(order.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal order meta: %w", err)
	}

	query := `INSERT INTO orders (` + orderColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())`

	_, insertErr := r.db.Q(ctx).ExecContext(ctx, query,
		order.ID,
		order.Code,
		order.UserID,
		order.OrganizationID,
		itemsJSON,
		order.TotalAmount,
		order.Currency,
		order.PaymentStatus,
		order.FulfillmentStatus,
		pq.Array(order.PaymentIntentIDs),
		nullable(order.TransactionID),
		order.ClientConfirmedDelivery,
		order.PaidAt,
		order.CancelledAt,
		order.ExpiredAt,
		metaJSON)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, order *domain.Order) error {
	metaJSON, err := json.Marshal(order.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal order meta: %w", err)
	}

	query := `UPDATE orders SET
	            payment_status = $2,
	            fulfillment_status = $3,
	            payment_intent_ids = $4,
	            transaction_id = $5,
	            client_confirmed_delivery = $6,
	            paid_at = $7,
	            cancelled_at = $8,
	            expired_at = $9,
	            meta = $10,
	            updated_at = NOW()
	          WHERE id = $1`

	result, err := r.db.Q(ctx).ExecContext(ctx, query,
		order.ID,
		order.PaymentStatus,
		order.FulfillmentStatus,
		pq.Array(order.PaymentIntentIDs),
		nullable(order.TransactionID),
		order.ClientConfirmedDelivery,
		order.PaidAt,
		order.CancelledAt,
		order.ExpiredAt,
		metaJSON)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order rows affected: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// UpdateMany applies Update per order; callers wanting atomicity run it
// inside postgres.DB.WithTx.
func (r *Repository) UpdateMany(ctx context.Context, orders []*domain.Order) error {
	for _, order := range orders {
		if err := r.Update(ctx, order); err != nil {
			return fmt.Errorf("update order %s: %w", order.ID, err)
		}
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.Q(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *Repository) GetManyByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ANY($1)`
	return r.queryOrders(ctx, query, pq.Array(ids))
}

func (r *Repository) ListByUserID(ctx context.Context, userID string, f Filters) ([]*domain.Order, error) {
	query, args := buildListQuery("user_id", userID, f)
	return r.queryOrders(ctx, query, args...)
}

func (r *Repository) ListByOrganizationID(ctx context.Context, organizationID string, f Filters) ([]*domain.Order, error) {
	query, args := buildListQuery("organization_id", organizationID, f)
	return r.queryOrders(ctx, query, args...)
}

func (r *Repository) ListByTransactionID(ctx context.Context, transactionID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE transaction_id = $1`
	return r.queryOrders(ctx, query, transactionID)
}

func (r *Repository) ListByPaymentIntentID(ctx context.Context, paymentIntentID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE $1 = ANY(payment_intent_ids)`
	return r.queryOrders(ctx, query, paymentIntentID)
}

func buildListQuery(column, value string, f Filters) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = $1`)
	args := []any{value}

	if f.PaymentStatus != "" {
		args = append(args, f.PaymentStatus)
		fmt.Fprintf(&sb, " AND payment_status = $%d", len(args))
	}
	if f.FulfillmentStatus != "" {
		args = append(args, f.FulfillmentStatus)
		fmt.Fprintf(&sb, " AND fulfillment_status = $%d", len(args))
	}

	sb.WriteString(" ORDER BY created_at DESC")

	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	return sb.String(), args
}

func (r *Repository) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.Q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

// nullable maps "" to NULL so empty transaction ids never collide in lookups.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order         domain.Order
		itemsJSON     []byte
		metaJSON      []byte
		transactionID sql.NullString
	)

	err := row.Scan(
		&order.ID,
		&order.Code,
		&order.UserID,
		&order.OrganizationID,
		&itemsJSON,
		&order.TotalAmount,
		&order.Currency,
		&order.PaymentStatus,
		&order.FulfillmentStatus,
		pq.Array(&order.PaymentIntentIDs),
		&transactionID,
		&order.ClientConfirmedDelivery,
		&order.PaidAt,
		&order.CancelledAt,
		&order.ExpiredAt,
		&metaJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.TransactionID = transactionID.String

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &order.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal order meta: %w", err)
		}
	}
	if order.Meta == nil {
		order.Meta = map[string]string{}
	}

	return &order, nil
}

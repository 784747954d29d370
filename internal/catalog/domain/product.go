package domain

import "time"

type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "DRAFT"
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusArchived ProductStatus = "ARCHIVED"
)

type Product struct {
	ID             string
	OrganizationID string
	Name           string
	Description    string
	Status         ProductStatus
	ImageURL       string
	CreatedAt      time.Time
}

func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// Price is a sellable amount for a product. Amounts are integer cents.
type Price struct {
	ID         string
	ProductID  string
	Currency   string
	UnitAmount int64
	Active     bool
	CreatedAt  time.Time
}

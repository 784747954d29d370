package domain

import "time"

type OrganizationStatus string

const (
	OrganizationStatusActive   OrganizationStatus = "ACTIVE"
	OrganizationStatusDisabled OrganizationStatus = "DISABLED"
)

// Organization is a store that owns products and receives orders.
type Organization struct {
	ID        string
	Name      string
	Status    OrganizationStatus
	CreatedAt time.Time
}

func (o *Organization) IsActive() bool {
	return o.Status == OrganizationStatusActive
}

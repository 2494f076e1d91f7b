package entity

import "time"

// Warehouse bodega de una empresa. El libro solo consulta existencia y Active.
type Warehouse struct {
	ID        string
	CompanyID string
	Name      string
	Active    bool
	CreatedAt time.Time
}

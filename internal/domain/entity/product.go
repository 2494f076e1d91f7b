package entity

import "time"

// Product producto del catálogo. ExpiryDate es fecha calendario (UTC, sin hora).
type Product struct {
	ID         string
	CompanyID  string
	Name       string
	BrandID    string
	CategoryID string
	Active     bool
	ExpiryDate *time.Time
}

// Expired indica si el producto está vencido en la fecha de at.
func (p *Product) Expired(at time.Time) bool {
	if p == nil || p.ExpiryDate == nil {
		return false
	}
	return p.ExpiryDate.Before(TruncateDay(at))
}

// ProductVariant variante vendible (SKU) de un producto.
type ProductVariant struct {
	ID                string
	CompanyID         string
	ProductID         string
	SKU               string
	Active            bool
	AttributeValueIDs []string
	Product           *Product
}

// Movable variante y producto activos.
func (v *ProductVariant) Movable() bool {
	return v != nil && v.Active && v.Product != nil && v.Product.Active
}

// TruncateDay normaliza a medianoche UTC.
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

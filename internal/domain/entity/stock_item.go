package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockItem saldo materializado por (bodega, variante). Es caché del libro de eventos;
// Version es el token de concurrencia optimista.
type StockItem struct {
	CompanyID   string
	WarehouseID string
	VariantID   string
	Quantity    decimal.Decimal
	Version     int64
	UpdatedAt   time.Time
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockSnapshotFilter filtros comunes de los reportes de saldo.
// AsOf != nil fuerza el cálculo desde el libro de eventos.
type StockSnapshotFilter struct {
	CompanyID         string
	WarehouseID       string
	ProductID         string
	CategoryID        string
	BrandID           string
	VariantID         string
	SKU               string
	AttributeValueIDs []string
	IncludeZero       bool
	Aggregate         bool
	AsOf              *time.Time
}

// StockSnapshotRow fila de saldo con nombres desnormalizados. WarehouseID vacío si es agregada.
type StockSnapshotRow struct {
	VariantID     string
	SKU           string
	ProductID     string
	ProductName   string
	BrandID       string
	BrandName     string
	CategoryID    string
	CategoryName  string
	WarehouseID   string
	WarehouseName string
	Quantity      decimal.Decimal
	ExpiryDate    *time.Time
}

// StockSnapshotView fila del reporte de saldo.
type StockSnapshotView struct {
	StockSnapshotRow
	AsOf time.Time
}

// LowStockView saldo por debajo del umbral; Deficit = Quantity - Threshold (negativo = faltante).
type LowStockView struct {
	StockSnapshotRow
	Threshold decimal.Decimal
	Deficit   decimal.Decimal
}

// ExpiringItemView saldo de un producto que vence dentro de la ventana.
type ExpiringItemView struct {
	StockSnapshotRow
	ExpiryDate      time.Time
	DaysUntilExpiry int
}

// StockHistoryFilter filtros del historial; VariantID o ProductID es obligatorio.
type StockHistoryFilter struct {
	CompanyID         string
	VariantID         string
	ProductID         string
	WarehouseID       string
	AttributeValueIDs []string
	From              *time.Time
	To                *time.Time
}

// StockHistoryEntry línea del historial con saldo corrido.
type StockHistoryEntry struct {
	EventID        string
	EventType      StockEventType
	WarehouseID    string
	WarehouseName  string
	VariantID      string
	OccurredAt     time.Time
	CreatedAt      time.Time
	QuantityChange decimal.Decimal
	BalanceBefore  decimal.Decimal
	BalanceAfter   decimal.Decimal
	ReasonCode     ReasonCode
	Notes          string
}

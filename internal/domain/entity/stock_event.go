package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cantidades: NUMERIC(18,4) en PostgreSQL.
const QuantityScale = 4

// MaxQuantity cota exclusiva del valor absoluto de una cantidad.
var MaxQuantity = decimal.New(1, 18-QuantityScale)

// QuantityFits indica si q se almacena sin redondeo.
func QuantityFits(q decimal.Decimal) bool {
	return q.Equal(q.Truncate(QuantityScale)) && q.Abs().LessThan(MaxQuantity)
}

// StockEventType tipo de hecho del libro de stock.
type StockEventType string

// Tipos de evento. TRANSFER_OUT y TRANSFER_IN solo los emite el coordinador de transferencias.
const (
	EventInbound     StockEventType = "INBOUND"
	EventOutbound    StockEventType = "OUTBOUND"
	EventAdjustment  StockEventType = "ADJUSTMENT"
	EventTransferOut StockEventType = "TRANSFER_OUT"
	EventTransferIn  StockEventType = "TRANSFER_IN"
)

// Valid indica si el tipo es conocido.
func (t StockEventType) Valid() bool {
	switch t {
	case EventInbound, EventOutbound, EventAdjustment, EventTransferOut, EventTransferIn:
		return true
	}
	return false
}

// IsTransfer indica si el tipo está reservado a transferencias.
func (t StockEventType) IsTransfer() bool {
	return t == EventTransferOut || t == EventTransferIn
}

// Delta convierte la cantidad de la línea en el delta firmado que aplica al saldo.
// INBOUND/TRANSFER_IN suman, OUTBOUND/TRANSFER_OUT restan y ADJUSTMENT ya viene firmado.
func (t StockEventType) Delta(quantity decimal.Decimal) decimal.Decimal {
	switch t {
	case EventOutbound, EventTransferOut:
		return quantity.Abs().Neg()
	case EventInbound, EventTransferIn:
		return quantity.Abs()
	default:
		return quantity
	}
}

// AllowsNegativeBalance ajustes son correcciones explícitas y no validan saldo.
func (t StockEventType) AllowsNegativeBalance() bool {
	return t == EventAdjustment
}

// ReasonCode motivo de negocio del evento.
type ReasonCode string

const (
	ReasonPurchase        ReasonCode = "PURCHASE"
	ReasonSale            ReasonCode = "SALE"
	ReasonCountCorrection ReasonCode = "COUNT_CORRECTION"
	ReasonDamage          ReasonCode = "DAMAGE"
	ReasonDiscardExpired  ReasonCode = "DISCARD_EXPIRED"
	ReasonTransfer        ReasonCode = "TRANSFER"
	ReasonOther           ReasonCode = "OTHER"
)

// Valid acepta vacío (motivo opcional) o un código conocido.
func (r ReasonCode) Valid() bool {
	switch r {
	case "", ReasonPurchase, ReasonSale, ReasonCountCorrection, ReasonDamage,
		ReasonDiscardExpired, ReasonTransfer, ReasonOther:
		return true
	}
	return false
}

// StockEvent hecho inmutable del libro. Nunca se actualiza ni se borra.
type StockEvent struct {
	ID             string
	CompanyID      string
	Type           StockEventType
	WarehouseID    string
	OccurredAt     time.Time // tiempo de negocio
	CreatedAt      time.Time // tiempo de sistema
	ReasonCode     ReasonCode
	Notes          string
	CreatedBy      string
	IdempotencyKey string
	TransferID     string // vacío salvo TRANSFER_OUT / TRANSFER_IN
	Lines          []StockEventLine
}

// StockEventLine línea del evento; Quantity es el delta firmado ya resuelto.
type StockEventLine struct {
	ID        string
	EventID   string
	VariantID string
	Quantity  decimal.Decimal
}

// Deltas devuelve los pares (variante, delta) del evento.
func (e *StockEvent) Deltas() []LineDelta {
	out := make([]LineDelta, 0, len(e.Lines))
	for _, l := range e.Lines {
		out = append(out, LineDelta{VariantID: l.VariantID, Delta: l.Quantity})
	}
	return out
}

// LineDelta cambio firmado sobre el saldo de una variante.
type LineDelta struct {
	VariantID string
	Delta     decimal.Decimal
}

// StockEventFilter filtros del listado de eventos.
type StockEventFilter struct {
	CompanyID    string
	Type         StockEventType
	WarehouseID  string
	VariantID    string
	ReasonCode   ReasonCode
	OccurredFrom *time.Time
	OccurredTo   *time.Time
	Limit        int
	Offset       int
}

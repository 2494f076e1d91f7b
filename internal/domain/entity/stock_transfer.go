package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferStatus estado de una transferencia entre bodegas.
type TransferStatus string

const (
	TransferDraft     TransferStatus = "DRAFT"
	TransferConfirmed TransferStatus = "CONFIRMED"
	TransferCancelled TransferStatus = "CANCELLED"
)

// Terminal CONFIRMED y CANCELLED no admiten más transiciones.
func (s TransferStatus) Terminal() bool {
	return s == TransferConfirmed || s == TransferCancelled
}

// Valid indica si el estado es conocido.
func (s TransferStatus) Valid() bool {
	return s == TransferDraft || s == TransferConfirmed || s == TransferCancelled
}

// StockTransfer movimiento planificado entre dos bodegas. Un borrador no tiene efecto en stock;
// OutboundEventID e InboundEventID se fijan juntos al confirmar.
type StockTransfer struct {
	ID                     string
	CompanyID              string
	OriginWarehouseID      string
	DestinationWarehouseID string
	Status                 TransferStatus
	Lines                  []StockTransferLine
	OccurredAt             time.Time
	Notes                  string
	CreatedBy              string
	CreatedAt              time.Time
	ConfirmedBy            string
	ConfirmedAt            *time.Time
	CancelledBy            string
	CancelledAt            *time.Time
	OutboundEventID        string
	InboundEventID         string
	IdempotencyKey         string
	UpdatedAt              time.Time
}

// StockTransferLine línea de la transferencia (cantidad siempre positiva).
type StockTransferLine struct {
	ID         string
	TransferID string
	VariantID  string
	Quantity   decimal.Decimal
}

// Confirm marca la transferencia como confirmada enlazando ambos eventos.
// Solo es válido desde DRAFT; el llamador verifica el estado.
func (t *StockTransfer) Confirm(outboundEventID, inboundEventID, actorID, idempotencyKey string, at time.Time) {
	t.Status = TransferConfirmed
	t.OutboundEventID = outboundEventID
	t.InboundEventID = inboundEventID
	t.ConfirmedBy = actorID
	t.ConfirmedAt = &at
	t.IdempotencyKey = idempotencyKey
	t.UpdatedAt = at
}

// Cancel marca la transferencia como cancelada.
func (t *StockTransfer) Cancel(actorID string, at time.Time) {
	t.Status = TransferCancelled
	t.CancelledBy = actorID
	t.CancelledAt = &at
	t.UpdatedAt = at
}

// TransferFilter filtros del listado de transferencias.
type TransferFilter struct {
	CompanyID              string
	Status                 TransferStatus
	OriginWarehouseID      string
	DestinationWarehouseID string
	OccurredFrom           *time.Time
	OccurredTo             *time.Time
	Limit                  int
	Offset                 int
}

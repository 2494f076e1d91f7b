package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// StockLineRequest línea de un evento o transferencia.
type StockLineRequest struct {
	VariantID string          `json:"variant_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// AppendStockEventRequest body para POST /api/stock/events. La clave de idempotencia va en el header.
type AppendStockEventRequest struct {
	WarehouseID string             `json:"warehouse_id"`
	Type        string             `json:"type"`
	ReasonCode  string             `json:"reason_code,omitempty"`
	Notes       string             `json:"notes,omitempty"`
	OccurredAt  *time.Time         `json:"occurred_at,omitempty"`
	Lines       []StockLineRequest `json:"lines"`
}

// StockEventLineResponse línea con el delta firmado aplicado.
type StockEventLineResponse struct {
	ID        string          `json:"id"`
	VariantID string          `json:"variant_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// StockEventResponse evento del libro.
type StockEventResponse struct {
	ID             string                   `json:"id"`
	Type           string                   `json:"type"`
	WarehouseID    string                   `json:"warehouse_id"`
	OccurredAt     time.Time                `json:"occurred_at"`
	CreatedAt      time.Time                `json:"created_at"`
	ReasonCode     string                   `json:"reason_code,omitempty"`
	Notes          string                   `json:"notes,omitempty"`
	CreatedBy      string                   `json:"created_by"`
	IdempotencyKey string                   `json:"idempotency_key,omitempty"`
	TransferID     string                   `json:"transfer_id,omitempty"`
	Lines          []StockEventLineResponse `json:"lines"`
}

// ListResponse listado paginado.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	PageResponse
}

// ToStockEventResponse mapea la entidad a la respuesta HTTP.
func ToStockEventResponse(ev *entity.StockEvent) StockEventResponse {
	lines := make([]StockEventLineResponse, 0, len(ev.Lines))
	for _, l := range ev.Lines {
		lines = append(lines, StockEventLineResponse{ID: l.ID, VariantID: l.VariantID, Quantity: l.Quantity})
	}
	return StockEventResponse{
		ID:             ev.ID,
		Type:           string(ev.Type),
		WarehouseID:    ev.WarehouseID,
		OccurredAt:     ev.OccurredAt,
		CreatedAt:      ev.CreatedAt,
		ReasonCode:     string(ev.ReasonCode),
		Notes:          ev.Notes,
		CreatedBy:      ev.CreatedBy,
		IdempotencyKey: ev.IdempotencyKey,
		TransferID:     ev.TransferID,
		Lines:          lines,
	}
}

// ToStockEventList mapea un listado de eventos.
func ToStockEventList(events []*entity.StockEvent, total, limit, offset int) ListResponse[StockEventResponse] {
	items := make([]StockEventResponse, 0, len(events))
	for _, ev := range events {
		items = append(items, ToStockEventResponse(ev))
	}
	return ListResponse[StockEventResponse]{
		Items:        items,
		PageResponse: PageResponse{Limit: limit, Offset: offset, Total: total},
	}
}

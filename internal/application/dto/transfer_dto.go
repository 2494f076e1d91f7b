package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// CreateTransferRequest body para POST /api/stock/transfers.
type CreateTransferRequest struct {
	OriginWarehouseID      string             `json:"origin_warehouse_id"`
	DestinationWarehouseID string             `json:"destination_warehouse_id"`
	OccurredAt             *time.Time         `json:"occurred_at,omitempty"`
	Notes                  string             `json:"notes,omitempty"`
	Lines                  []StockLineRequest `json:"lines"`
}

type TransferLineResponse struct {
	ID        string          `json:"id"`
	VariantID string          `json:"variant_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// TransferResponse transferencia con su estado y, si está confirmada, los eventos enlazados.
type TransferResponse struct {
	ID                     string                 `json:"id"`
	OriginWarehouseID      string                 `json:"origin_warehouse_id"`
	DestinationWarehouseID string                 `json:"destination_warehouse_id"`
	Status                 string                 `json:"status"`
	OccurredAt             time.Time              `json:"occurred_at"`
	Notes                  string                 `json:"notes,omitempty"`
	CreatedBy              string                 `json:"created_by"`
	CreatedAt              time.Time              `json:"created_at"`
	ConfirmedBy            string                 `json:"confirmed_by,omitempty"`
	ConfirmedAt            *time.Time             `json:"confirmed_at,omitempty"`
	CancelledBy            string                 `json:"cancelled_by,omitempty"`
	CancelledAt            *time.Time             `json:"cancelled_at,omitempty"`
	OutboundEventID        string                 `json:"outbound_event_id,omitempty"`
	InboundEventID         string                 `json:"inbound_event_id,omitempty"`
	Lines                  []TransferLineResponse `json:"lines"`
}

// ToTransferResponse mapea la entidad a la respuesta HTTP.
func ToTransferResponse(t *entity.StockTransfer) TransferResponse {
	lines := make([]TransferLineResponse, 0, len(t.Lines))
	for _, l := range t.Lines {
		lines = append(lines, TransferLineResponse{ID: l.ID, VariantID: l.VariantID, Quantity: l.Quantity})
	}
	return TransferResponse{
		ID:                     t.ID,
		OriginWarehouseID:      t.OriginWarehouseID,
		DestinationWarehouseID: t.DestinationWarehouseID,
		Status:                 string(t.Status),
		OccurredAt:             t.OccurredAt,
		Notes:                  t.Notes,
		CreatedBy:              t.CreatedBy,
		CreatedAt:              t.CreatedAt,
		ConfirmedBy:            t.ConfirmedBy,
		ConfirmedAt:            t.ConfirmedAt,
		CancelledBy:            t.CancelledBy,
		CancelledAt:            t.CancelledAt,
		OutboundEventID:        t.OutboundEventID,
		InboundEventID:         t.InboundEventID,
		Lines:                  lines,
	}
}

// ToTransferList mapea un listado de transferencias.
func ToTransferList(transfers []*entity.StockTransfer, total, limit, offset int) ListResponse[TransferResponse] {
	items := make([]TransferResponse, 0, len(transfers))
	for _, t := range transfers {
		items = append(items, ToTransferResponse(t))
	}
	return ListResponse[TransferResponse]{
		Items:        items,
		PageResponse: PageResponse{Limit: limit, Offset: offset, Total: total},
	}
}

package entity

import "time"

// Ámbitos de idempotencia.
const (
	IdempotencyScopeStockEvent      = "stock_event"
	IdempotencyScopeTransferConfirm = "transfer_confirm"
)

// IdempotencyRecord reclamo de una clave de idempotencia. ResultID queda vacío
// mientras la operación que la reclamó no termina.
type IdempotencyRecord struct {
	CompanyID   string
	Scope       string
	Key         string
	Fingerprint string
	ResultID    string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

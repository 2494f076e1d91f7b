package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// IdempotencyRepository reclamos de claves de idempotencia, en la misma transacción que la escritura.
type IdempotencyRepository interface {
	// Claim registra rec. Si la clave ya existe devuelve el registro existente y claimed=false;
	// un reclamo concurrente no confirmado bloquea hasta que su transacción termine.
	Claim(ctx context.Context, rec *entity.IdempotencyRecord) (existing *entity.IdempotencyRecord, claimed bool, err error)
	Complete(ctx context.Context, companyID, scope, key, resultID string) error
}

package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

var _ repository.IdempotencyRepository = (*IdempotencyRepo)(nil)

// IdempotencyRepo reclamos de claves en memoria.
type IdempotencyRepo struct {
	view view
}

// Claim registra la clave o devuelve el registro existente.
func (r *IdempotencyRepo) Claim(_ context.Context, rec *entity.IdempotencyRecord) (*entity.IdempotencyRecord, bool, error) {
	st, release := r.view()
	defer release()
	k := idemKey{rec.CompanyID, rec.Scope, rec.Key}
	if cur, ok := st.idem[k]; ok {
		return &cur, false, nil
	}
	st.idem[k] = *rec
	return nil, true, nil
}

// Complete guarda el resultado de la operación.
func (r *IdempotencyRepo) Complete(_ context.Context, companyID, scope, key, resultID string) error {
	st, release := r.view()
	defer release()
	k := idemKey{companyID, scope, key}
	cur, ok := st.idem[k]
	if !ok {
		return fmt.Errorf("complete idempotency key %s: %w", key, domain.ErrNotFound)
	}
	now := time.Now().UTC()
	cur.ResultID = resultID
	cur.CompletedAt = &now
	st.idem[k] = cur
	return nil
}

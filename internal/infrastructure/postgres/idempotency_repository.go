package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

var _ repository.IdempotencyRepository = (*IdempotencyRepo)(nil)

// IdempotencyRepo claves de idempotencia sobre PostgreSQL. Debe usarse con la tx de la escritura.
type IdempotencyRepo struct {
	q Querier
}

// NewIdempotencyRepository construye el adaptador. Pasar la tx (Querier).
func NewIdempotencyRepository(q Querier) *IdempotencyRepo {
	return &IdempotencyRepo{q: q}
}

// Claim inserta la clave. Con clave existente el INSERT espera a que la tx dueña termine
// y luego se lee el registro ya confirmado.
func (r *IdempotencyRepo) Claim(ctx context.Context, rec *entity.IdempotencyRecord) (*entity.IdempotencyRecord, bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO idempotency_keys (company_id, scope, key, fingerprint, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id, scope, key) DO NOTHING`,
		rec.CompanyID, rec.Scope, rec.Key, rec.Fingerprint, rec.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil, true, nil
	}

	var (
		existing entity.IdempotencyRecord
		resultID *string
	)
	err = r.q.QueryRow(ctx, `
		SELECT company_id, scope, key, fingerprint, result_id, created_at, completed_at
		FROM idempotency_keys WHERE company_id = $1 AND scope = $2 AND key = $3`,
		rec.CompanyID, rec.Scope, rec.Key,
	).Scan(&existing.CompanyID, &existing.Scope, &existing.Key, &existing.Fingerprint,
		&resultID, &existing.CreatedAt, &existing.CompletedAt)
	if err != nil {
		return nil, false, fmt.Errorf("get idempotency key: %w", err)
	}
	existing.ResultID = deref(resultID)
	return &existing, false, nil
}

// Complete registra el resultado de la operación que reclamó la clave.
func (r *IdempotencyRepo) Complete(ctx context.Context, companyID, scope, key, resultID string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE idempotency_keys SET result_id = $4, completed_at = now()
		WHERE company_id = $1 AND scope = $2 AND key = $3`,
		companyID, scope, key, resultID,
	)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete idempotency key %s: %w", key, domain.ErrNotFound)
	}
	return nil
}

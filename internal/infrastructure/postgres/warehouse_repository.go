package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

var _ repository.WarehouseRepository = (*WarehouseRepo)(nil)

// WarehouseRepo implementación del puerto WarehouseRepository sobre PostgreSQL.
type WarehouseRepo struct {
	q Querier
}

// NewWarehouseRepository construye el adaptador de persistencia para bodegas.
func NewWarehouseRepository(q Querier) *WarehouseRepo {
	return &WarehouseRepo{q: q}
}

// Upsert crea o actualiza una bodega (carga de catálogo).
func (r *WarehouseRepo) Upsert(ctx context.Context, w *entity.Warehouse) error {
	query := `
		INSERT INTO warehouses (id, company_id, name, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, active = EXCLUDED.active`
	if _, err := r.q.Exec(ctx, query, w.ID, w.CompanyID, w.Name, w.Active, w.CreatedAt); err != nil {
		return fmt.Errorf("upsert warehouse: %w", err)
	}
	return nil
}

// GetByID obtiene una bodega de la empresa; nil si no existe.
func (r *WarehouseRepo) GetByID(ctx context.Context, companyID, id string) (*entity.Warehouse, error) {
	if !validUUID(id) {
		return nil, nil
	}
	query := `
		SELECT id, company_id, name, active, created_at
		FROM warehouses WHERE company_id = $1 AND id = $2`
	var w entity.Warehouse
	err := r.q.QueryRow(ctx, query, companyID, id).Scan(&w.ID, &w.CompanyID, &w.Name, &w.Active, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get warehouse: %w", err)
	}
	return &w, nil
}

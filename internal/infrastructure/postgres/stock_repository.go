package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

var _ repository.StockItemRepository = (*StockItemRepo)(nil)

// StockItemRepo saldos materializados sobre PostgreSQL (usable con pool o tx).
type StockItemRepo struct {
	q Querier
}

// NewStockItemRepository construye el adaptador de saldos. Pasar pool o tx (Querier).
func NewStockItemRepository(q Querier) *StockItemRepo {
	return &StockItemRepo{q: q}
}

// GetMany obtiene los saldos existentes de las variantes en la bodega.
func (r *StockItemRepo) GetMany(ctx context.Context, companyID, warehouseID string, variantIDs []string) (map[string]*entity.StockItem, error) {
	out := make(map[string]*entity.StockItem, len(variantIDs))
	ids := validUUIDs(variantIDs)
	if len(ids) == 0 || !validUUID(warehouseID) {
		return out, nil
	}
	query := `
		SELECT company_id, warehouse_id, variant_id, quantity, version, updated_at
		FROM stock_items
		WHERE company_id = $1 AND warehouse_id = $2 AND variant_id = ANY($3)`
	rows, err := r.q.Query(ctx, query, companyID, warehouseID, ids)
	if err != nil {
		return nil, fmt.Errorf("get stock items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it entity.StockItem
		if err := rows.Scan(&it.CompanyID, &it.WarehouseID, &it.VariantID, &it.Quantity, &it.Version, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock item: %w", err)
		}
		out[it.VariantID] = &it
	}
	return out, rows.Err()
}

// Insert crea el saldo; false si otra transacción lo creó primero.
func (r *StockItemRepo) Insert(ctx context.Context, item *entity.StockItem) (bool, error) {
	query := `
		INSERT INTO stock_items (company_id, warehouse_id, variant_id, quantity, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id, warehouse_id, variant_id) DO NOTHING`
	tag, err := r.q.Exec(ctx, query,
		item.CompanyID, item.WarehouseID, item.VariantID, item.Quantity, item.Version, item.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert stock item: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CompareAndSwap actualiza solo si la versión persistida es expectedVersion.
func (r *StockItemRepo) CompareAndSwap(ctx context.Context, item *entity.StockItem, expectedVersion int64) (bool, error) {
	query := `
		UPDATE stock_items SET quantity = $4, version = $5, updated_at = $6
		WHERE company_id = $1 AND warehouse_id = $2 AND variant_id = $3 AND version = $7`
	tag, err := r.q.Exec(ctx, query,
		item.CompanyID, item.WarehouseID, item.VariantID, item.Quantity, item.Version, item.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return false, fmt.Errorf("update stock item: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Lock toma FOR UPDATE sobre las filas existentes ordenadas por variante.
func (r *StockItemRepo) Lock(ctx context.Context, companyID, warehouseID string, variantIDs []string) error {
	ids := validUUIDs(variantIDs)
	if len(ids) == 0 || !validUUID(warehouseID) {
		return nil
	}
	query := `
		SELECT variant_id FROM stock_items
		WHERE company_id = $1 AND warehouse_id = $2 AND variant_id = ANY($3)
		ORDER BY variant_id
		FOR UPDATE`
	rows, err := r.q.Query(ctx, query, companyID, warehouseID, ids)
	if err != nil {
		return fmt.Errorf("lock stock items: %w", err)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock stock items: %w", err)
	}
	return nil
}

// WithinSavepoint abre un savepoint (Begin sobre la tx actual); error = ROLLBACK TO SAVEPOINT.
func (r *StockItemRepo) WithinSavepoint(ctx context.Context, fn func(items repository.StockItemRepository) error) error {
	sp, err := r.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := fn(NewStockItemRepository(sp)); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

package memory

import (
	"context"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

var _ repository.StockItemRepository = (*ItemRepo)(nil)

// ItemRepo saldos materializados en memoria.
type ItemRepo struct {
	view view
}

// GetMany devuelve los saldos existentes por variante.
func (r *ItemRepo) GetMany(_ context.Context, companyID, warehouseID string, variantIDs []string) (map[string]*entity.StockItem, error) {
	st, release := r.view()
	defer release()
	out := make(map[string]*entity.StockItem, len(variantIDs))
	for _, v := range variantIDs {
		if it, ok := st.items[itemKey{companyID, warehouseID, v}]; ok {
			c := it
			out[v] = &c
		}
	}
	return out, nil
}

// Insert crea el saldo si no existe.
func (r *ItemRepo) Insert(_ context.Context, item *entity.StockItem) (bool, error) {
	st, release := r.view()
	defer release()
	k := itemKey{item.CompanyID, item.WarehouseID, item.VariantID}
	if _, ok := st.items[k]; ok {
		return false, nil
	}
	st.items[k] = *item
	return true, nil
}

// CompareAndSwap escribe si la versión coincide.
func (r *ItemRepo) CompareAndSwap(_ context.Context, item *entity.StockItem, expectedVersion int64) (bool, error) {
	st, release := r.view()
	defer release()
	k := itemKey{item.CompanyID, item.WarehouseID, item.VariantID}
	cur, ok := st.items[k]
	if !ok || cur.Version != expectedVersion {
		return false, nil
	}
	st.items[k] = *item
	return true, nil
}

// Lock no hace nada: Store.Run ya serializa las transacciones.
func (r *ItemRepo) Lock(context.Context, string, string, []string) error { return nil }

// WithinSavepoint restaura los saldos si fn falla.
func (r *ItemRepo) WithinSavepoint(ctx context.Context, fn func(items repository.StockItemRepository) error) error {
	st, release := r.view()
	snapshot := make(map[itemKey]entity.StockItem, len(st.items))
	for k, v := range st.items {
		snapshot[k] = v
	}
	release()

	if err := fn(r); err != nil {
		st, release := r.view()
		st.items = snapshot
		release()
		return err
	}
	return nil
}

// List devuelve todos los saldos de la empresa (tests y diagnóstico).
func (r *ItemRepo) List(_ context.Context, companyID string) []entity.StockItem {
	st, release := r.view()
	defer release()
	var out []entity.StockItem
	for _, it := range st.items {
		if it.CompanyID == companyID {
			out = append(out, it)
		}
	}
	return out
}

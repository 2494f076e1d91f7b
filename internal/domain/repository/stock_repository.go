package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// StockItemRepository saldos materializados con compare-and-swap sobre Version.
// Usado dentro de transacciones para garantizar consistencia.
type StockItemRepository interface {
	// GetMany devuelve los saldos existentes indexados por variante; las ausentes no aparecen.
	GetMany(ctx context.Context, companyID, warehouseID string, variantIDs []string) (map[string]*entity.StockItem, error)
	// Insert crea la fila; false si ya existía (otra transacción la creó primero).
	Insert(ctx context.Context, item *entity.StockItem) (bool, error)
	// CompareAndSwap escribe item solo si la versión persistida sigue siendo expectedVersion.
	CompareAndSwap(ctx context.Context, item *entity.StockItem, expectedVersion int64) (bool, error)
	// Lock bloquea hasta fin de la transacción las filas existentes, en orden de variante.
	Lock(ctx context.Context, companyID, warehouseID string, variantIDs []string) error
	// WithinSavepoint ejecuta fn de forma atómica dentro de la transacción actual.
	WithinSavepoint(ctx context.Context, fn func(items StockItemRepository) error) error
}

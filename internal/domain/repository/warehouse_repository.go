package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// WarehouseRepository consulta de bodegas (datos de referencia externos al libro).
type WarehouseRepository interface {
	// GetByID devuelve nil, nil si la bodega no existe en la empresa.
	GetByID(ctx context.Context, companyID, id string) (*entity.Warehouse, error)
}

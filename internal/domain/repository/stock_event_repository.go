package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// StockEventRepository persistencia append-only de eventos y sus líneas.
// No expone Update ni Delete: los eventos son inmutables.
type StockEventRepository interface {
	Create(ctx context.Context, event *entity.StockEvent) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, companyID, id string) (*entity.StockEvent, error)
	GetByIdempotencyKey(ctx context.Context, companyID, key string) (*entity.StockEvent, error)
	List(ctx context.Context, filter entity.StockEventFilter) ([]*entity.StockEvent, int, error)
}

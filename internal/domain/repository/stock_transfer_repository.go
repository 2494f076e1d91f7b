package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// StockTransferRepository persistencia de transferencias entre bodegas.
type StockTransferRepository interface {
	Create(ctx context.Context, transfer *entity.StockTransfer) error
	GetByID(ctx context.Context, companyID, id string) (*entity.StockTransfer, error)
	// GetForUpdate bloquea la transferencia hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, companyID, id string) (*entity.StockTransfer, error)
	// UpdateStatus persiste la transición si el estado persistido sigue siendo from.
	UpdateStatus(ctx context.Context, transfer *entity.StockTransfer, from entity.TransferStatus) (bool, error)
	List(ctx context.Context, filter entity.TransferFilter) ([]*entity.StockTransfer, int, error)
}

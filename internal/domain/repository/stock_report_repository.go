package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// StockReportRepository consultas de lectura sobre saldos y libro de eventos.
type StockReportRepository interface {
	// Snapshot lee los saldos materializados.
	Snapshot(ctx context.Context, filter entity.StockSnapshotFilter) ([]entity.StockSnapshotRow, error)
	// SnapshotAsOf suma las líneas de eventos con occurred_at <= *filter.AsOf.
	SnapshotAsOf(ctx context.Context, filter entity.StockSnapshotFilter) ([]entity.StockSnapshotRow, error)
	// BalanceBefore suma los deltas estrictamente anteriores a before.
	BalanceBefore(ctx context.Context, filter entity.StockHistoryFilter, before time.Time) (decimal.Decimal, error)
	// History devuelve las líneas en orden (occurred_at, created_at) sin saldo corrido.
	History(ctx context.Context, filter entity.StockHistoryFilter) ([]entity.StockHistoryEntry, error)
}

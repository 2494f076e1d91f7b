package stock

import (
	"context"

	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

// Repos repositorios atados a una misma transacción.
type Repos struct {
	Events      repository.StockEventRepository
	Items       repository.StockItemRepository
	Transfers   repository.StockTransferRepository
	Idempotency repository.IdempotencyRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Commit si fn devuelve nil, Rollback en cualquier otro caso.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
}

// Metrics contadores del libro. La implementación Prometheus vive en infraestructura.
type Metrics interface {
	EventAppended(eventType string)
	IdempotentReplay(scope string)
	IdempotencyConflict(scope string)
	ContentionRetry()
	InsufficientStock()
	TransferTransition(status string)
}

type noopMetrics struct{}

func (noopMetrics) EventAppended(string)       {}
func (noopMetrics) IdempotentReplay(string)    {}
func (noopMetrics) IdempotencyConflict(string) {}
func (noopMetrics) ContentionRetry()           {}
func (noopMetrics) InsufficientStock()         {}
func (noopMetrics) TransferTransition(string)  {}

// NoopMetrics descarta todas las métricas.
func NoopMetrics() Metrics { return noopMetrics{} }

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/stock-ledger-api/internal/application/stock"
	"github.com/jhoicas/stock-ledger-api/internal/domain"
)

var _ stock.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool       *pgxpool.Pool
	maxRetries int
	baseDelay  time.Duration
}

// TxOption configura el TxRunner.
type TxOption func(*TxRunner)

// WithTxRetry reintentos de la transacción completa cuando PostgreSQL la aborta por
// interbloqueo (40P01) o fallo de serialización (40001).
func WithTxRetry(maxRetries int, baseDelay time.Duration) TxOption {
	return func(r *TxRunner) {
		if maxRetries >= 0 {
			r.maxRetries = maxRetries
		}
		if baseDelay > 0 {
			r.baseDelay = baseDelay
		}
	}
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool, opts ...TxOption) *TxRunner {
	r := &TxRunner{pool: pool, maxRetries: 3, baseDelay: 10 * time.Millisecond}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
// fn puede ejecutarse más de una vez: cada intento empieza de cero en una transacción nueva.
func (r *TxRunner) Run(ctx context.Context, fn func(ctx context.Context, repos stock.Repos) error) error {
	return retryAborted(ctx, r.maxRetries, r.baseDelay, func() error { return r.runOnce(ctx, fn) })
}

func (r *TxRunner) runOnce(ctx context.Context, fn func(ctx context.Context, repos stock.Repos) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	repos := stock.Repos{
		Events:      NewStockEventRepository(tx),
		Items:       NewStockItemRepository(tx),
		Transfers:   NewStockTransferRepository(tx),
		Idempotency: NewIdempotencyRepository(tx),
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// retryAborted repite op mientras PostgreSQL aborte la transacción por contención.
// Agotados los reintentos devuelve *domain.ConcurrentModificationError; cualquier otro
// error se devuelve en el primer intento.
func retryAborted(ctx context.Context, maxRetries int, baseDelay time.Duration, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseDelay
	b.MaxElapsedTime = 0
	b.Reset()

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err != nil && !isTxAborted(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx))
	if err != nil && isTxAborted(err) {
		return &domain.ConcurrentModificationError{Attempts: attempts}
	}
	return err
}

// isTxAborted interbloqueo (40P01) o fallo de serialización (40001).
func isTxAborted(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40P01" || pgErr.Code == "40001"
	}
	return false
}

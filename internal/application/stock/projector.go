package stock

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

// ProjectorConfig límites del reintento optimista sobre saldos.
type ProjectorConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// BalanceProjector mantiene stock_items aplicando deltas con compare-and-swap por versión.
// Es el único escritor de StockItem.
type BalanceProjector struct {
	cfg     ProjectorConfig
	metrics Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// NewBalanceProjector construye el proyector.
func NewBalanceProjector(cfg ProjectorConfig, opts ...Option) *BalanceProjector {
	o := buildOptions(opts)
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return &BalanceProjector{cfg: cfg, metrics: o.metrics, log: o.log, now: o.now}
}

// ApplyDeltas aplica el lote sobre una bodega. Todas las líneas se validan antes de escribir
// ninguna: si una dejaría saldo negativo (y allowNegative es false) el lote entero se rechaza
// con *domain.InsufficientStockError. Ante conflicto de versión reintenta hasta MaxRetries
// veces y luego devuelve *domain.ConcurrentModificationError.
func (p *BalanceProjector) ApplyDeltas(
	ctx context.Context,
	items repository.StockItemRepository,
	companyID, warehouseID string,
	deltas []entity.LineDelta,
	allowNegative bool,
) ([]entity.StockItem, error) {
	if len(deltas) == 0 {
		return nil, domain.NewValidationError(domain.ReasonEmptyLines, "")
	}
	ordered := mergeDeltas(deltas)
	ids := make([]string, len(ordered))
	for i, d := range ordered {
		ids[i] = d.VariantID
	}

	var (
		applied  []entity.StockItem
		conflict *domain.ConcurrentModificationError
		attempts int
	)
	op := func() error {
		attempts++
		if attempts > 1 {
			p.metrics.ContentionRetry()
			p.log.Debug().
				Str("company_id", companyID).
				Str("warehouse_id", warehouseID).
				Int("attempt", attempts).
				Msg("reintento por conflicto de versión")
		}
		res, err := p.attempt(ctx, items, companyID, warehouseID, ordered, ids, allowNegative)
		if err == nil {
			applied = res
			return nil
		}
		if errors.As(err, &conflict) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), uint64(p.cfg.MaxRetries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) && conflict != nil {
			conflict.Attempts = attempts
			p.log.Warn().
				Str("company_id", companyID).
				Str("warehouse_id", warehouseID).
				Str("variant_id", conflict.VariantID).
				Int("attempts", attempts).
				Msg("contención agotada sobre saldo")
			return nil, conflict
		}
		if errors.Is(err, domain.ErrInsufficientStock) {
			p.metrics.InsufficientStock()
		}
		return nil, err
	}
	return applied, nil
}

func (p *BalanceProjector) attempt(
	ctx context.Context,
	items repository.StockItemRepository,
	companyID, warehouseID string,
	deltas []entity.LineDelta,
	ids []string,
	allowNegative bool,
) ([]entity.StockItem, error) {
	var applied []entity.StockItem
	err := items.WithinSavepoint(ctx, func(items repository.StockItemRepository) error {
		current, err := items.GetMany(ctx, companyID, warehouseID, ids)
		if err != nil {
			return err
		}
		now := p.now().UTC()
		next := make([]entity.StockItem, len(deltas))
		exists := make([]bool, len(deltas))
		for i, d := range deltas {
			base, version := decimal.Zero, int64(0)
			if it, ok := current[d.VariantID]; ok {
				base, version, exists[i] = it.Quantity, it.Version, true
			}
			qty := base.Add(d.Delta)
			if !allowNegative && d.Delta.IsNegative() && qty.IsNegative() {
				return &domain.InsufficientStockError{
					WarehouseID: warehouseID,
					VariantID:   d.VariantID,
					Requested:   d.Delta.Neg(),
					Available:   base,
				}
			}
			next[i] = entity.StockItem{
				CompanyID:   companyID,
				WarehouseID: warehouseID,
				VariantID:   d.VariantID,
				Quantity:    qty,
				Version:     version + 1,
				UpdatedAt:   now,
			}
		}
		for i := range next {
			var ok bool
			if exists[i] {
				ok, err = items.CompareAndSwap(ctx, &next[i], next[i].Version-1)
			} else {
				ok, err = items.Insert(ctx, &next[i])
			}
			if err != nil {
				return err
			}
			if !ok {
				return &domain.ConcurrentModificationError{WarehouseID: warehouseID, VariantID: next[i].VariantID}
			}
		}
		applied = next
		return nil
	})
	return applied, err
}

func (p *BalanceProjector) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.BaseDelay
	b.MaxInterval = p.cfg.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// mergeDeltas suma deltas de la misma variante y ordena por variante; el orden fijo
// de escritura evita interbloqueos entre lotes que comparten filas.
func mergeDeltas(deltas []entity.LineDelta) []entity.LineDelta {
	idx := make(map[string]int, len(deltas))
	out := make([]entity.LineDelta, 0, len(deltas))
	for _, d := range deltas {
		if i, ok := idx[d.VariantID]; ok {
			out[i].Delta = out[i].Delta.Add(d.Delta)
			continue
		}
		idx[d.VariantID] = len(out)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariantID < out[j].VariantID })
	return out
}

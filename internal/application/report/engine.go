// Package report consultas de lectura del libro de stock: saldo actual o a una fecha,
// bajo stock, próximos a vencer e historial con saldo corrido.
package report

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	fallbackDays     = 30
)

// Config valores por defecto de los reportes.
type Config struct {
	LowStockThreshold decimal.Decimal
	ExpiringDaysAhead int
}

// Page resultado paginado.
type Page[T any] struct {
	Items  []T
	Total  int
	Limit  int
	Offset int
}

// SortOrder campo de ordenamiento; varios se aplican en orden de prioridad.
type SortOrder struct {
	Field string
	Desc  bool
}

// PageQuery paginación y orden comunes.
type PageQuery struct {
	Sort   []SortOrder
	Limit  int
	Offset int
}

type SnapshotQuery struct {
	Filter entity.StockSnapshotFilter
	PageQuery
}

// LowStockQuery Threshold nil usa el umbral configurado.
type LowStockQuery struct {
	Filter    entity.StockSnapshotFilter
	Threshold *decimal.Decimal
	PageQuery
}

// ExpiringQuery AsOf nil usa la fecha actual; DaysAhead <= 0 usa la ventana configurada.
type ExpiringQuery struct {
	Filter         entity.StockSnapshotFilter
	AsOf           *time.Time
	DaysAhead      int
	IncludeExpired bool
	PageQuery
}

type HistoryQuery struct {
	Filter entity.StockHistoryFilter
	PageQuery
}

// Option configura el motor.
type Option func(*Engine)

// WithLogger asigna el logger estructurado.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock reemplaza el reloj del sistema (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine motor de reportes. Lee los saldos materializados (camino rápido) o reconstruye
// desde el libro cuando se pide una fecha de corte.
type Engine struct {
	reports    repository.StockReportRepository
	warehouses repository.WarehouseRepository
	cfg        Config
	log        zerolog.Logger
	now        func() time.Time
}

func NewEngine(reports repository.StockReportRepository, warehouses repository.WarehouseRepository, cfg Config, opts ...Option) *Engine {
	if !cfg.LowStockThreshold.IsPositive() {
		cfg.LowStockThreshold = decimal.NewFromInt(10)
	}
	if cfg.ExpiringDaysAhead <= 0 {
		cfg.ExpiringDaysAhead = fallbackDays
	}
	e := &Engine{
		reports:    reports,
		warehouses: warehouses,
		cfg:        cfg,
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot saldo actual, o a la fecha Filter.AsOf sumando el libro.
func (e *Engine) Snapshot(ctx context.Context, actor entity.Actor, q SnapshotQuery) (Page[entity.StockSnapshotView], error) {
	if err := e.authorize(ctx, actor, q.Filter.CompanyID, q.Filter.WarehouseID); err != nil {
		return Page[entity.StockSnapshotView]{}, err
	}
	sorter, err := snapshotSorter(q.Sort)
	if err != nil {
		return Page[entity.StockSnapshotView]{}, err
	}

	asOf := e.now().UTC()
	var rows []entity.StockSnapshotRow
	if q.Filter.AsOf != nil {
		at := q.Filter.AsOf.UTC()
		q.Filter.AsOf = &at
		asOf = at
		rows, err = e.reports.SnapshotAsOf(ctx, q.Filter)
	} else {
		rows, err = e.reports.Snapshot(ctx, q.Filter)
	}
	if err != nil {
		return Page[entity.StockSnapshotView]{}, err
	}

	views := make([]entity.StockSnapshotView, len(rows))
	for i, r := range rows {
		views[i] = entity.StockSnapshotView{StockSnapshotRow: r, AsOf: asOf}
	}
	sorter(views)
	e.log.Debug().
		Str("company_id", q.Filter.CompanyID).
		Bool("as_of", q.Filter.AsOf != nil).
		Int("rows", len(views)).
		Msg("reporte de saldo")
	return paginate(views, q.PageQuery), nil
}

// LowStock saldos por debajo del umbral con su déficit (cantidad - umbral).
func (e *Engine) LowStock(ctx context.Context, actor entity.Actor, q LowStockQuery) (Page[entity.LowStockView], error) {
	threshold := e.cfg.LowStockThreshold
	if q.Threshold != nil {
		if !q.Threshold.IsPositive() {
			return Page[entity.LowStockView]{}, domain.NewValidationError(domain.ReasonInvalidThreshold, q.Threshold.String())
		}
		threshold = *q.Threshold
	}
	if err := e.authorize(ctx, actor, q.Filter.CompanyID, q.Filter.WarehouseID); err != nil {
		return Page[entity.LowStockView]{}, err
	}
	sorter, err := lowStockSorter(q.Sort)
	if err != nil {
		return Page[entity.LowStockView]{}, err
	}

	f := q.Filter
	f.AsOf = nil
	f.IncludeZero = true
	rows, err := e.reports.Snapshot(ctx, f)
	if err != nil {
		return Page[entity.LowStockView]{}, err
	}
	var views []entity.LowStockView
	for _, r := range rows {
		if r.Quantity.GreaterThanOrEqual(threshold) {
			continue
		}
		views = append(views, entity.LowStockView{
			StockSnapshotRow: r,
			Threshold:        threshold,
			Deficit:          r.Quantity.Sub(threshold),
		})
	}
	sorter(views)
	return paginate(views, q.PageQuery), nil
}

// ExpiringItems saldos de productos que vencen en [asOf, asOf+daysAhead]; con
// IncludeExpired también los ya vencidos.
func (e *Engine) ExpiringItems(ctx context.Context, actor entity.Actor, q ExpiringQuery) (Page[entity.ExpiringItemView], error) {
	if err := e.authorize(ctx, actor, q.Filter.CompanyID, q.Filter.WarehouseID); err != nil {
		return Page[entity.ExpiringItemView]{}, err
	}
	sorter, err := expiringSorter(q.Sort)
	if err != nil {
		return Page[entity.ExpiringItemView]{}, err
	}
	days := q.DaysAhead
	if days <= 0 {
		days = e.cfg.ExpiringDaysAhead
	}
	asOf := e.now()
	if q.AsOf != nil {
		asOf = *q.AsOf
	}
	start := entity.TruncateDay(asOf)
	end := start.AddDate(0, 0, days)

	f := q.Filter
	f.AsOf = nil
	f.IncludeZero = true
	rows, err := e.reports.Snapshot(ctx, f)
	if err != nil {
		return Page[entity.ExpiringItemView]{}, err
	}
	var views []entity.ExpiringItemView
	for _, r := range rows {
		if r.ExpiryDate == nil {
			continue
		}
		exp := entity.TruncateDay(*r.ExpiryDate)
		if exp.After(end) {
			continue
		}
		if !q.IncludeExpired && exp.Before(start) {
			continue
		}
		views = append(views, entity.ExpiringItemView{
			StockSnapshotRow: r,
			ExpiryDate:       exp,
			DaysUntilExpiry:  daysBetween(start, exp),
		})
	}
	sorter(views)
	return paginate(views, q.PageQuery), nil
}

// History líneas del rango en orden cronológico, cada una con saldo antes y después.
// El saldo inicial es la suma de todos los deltas estrictamente anteriores a From.
func (e *Engine) History(ctx context.Context, actor entity.Actor, q HistoryQuery) (Page[entity.StockHistoryEntry], error) {
	f := q.Filter
	if f.VariantID == "" && f.ProductID == "" {
		return Page[entity.StockHistoryEntry]{}, domain.NewValidationError(domain.ReasonMissingHistoryTarget, "")
	}
	if err := e.authorize(ctx, actor, f.CompanyID, f.WarehouseID); err != nil {
		return Page[entity.StockHistoryEntry]{}, err
	}
	if f.From != nil {
		from := f.From.UTC()
		f.From = &from
	}
	if f.To != nil {
		to := f.To.UTC()
		f.To = &to
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return Page[entity.StockHistoryEntry]{}, domain.NewValidationError(domain.ReasonInvalidRange, "")
	}
	desc, err := historyOrder(q.Sort)
	if err != nil {
		return Page[entity.StockHistoryEntry]{}, err
	}

	balance := decimal.Zero
	if f.From != nil {
		balance, err = e.reports.BalanceBefore(ctx, f, *f.From)
		if err != nil {
			return Page[entity.StockHistoryEntry]{}, err
		}
	}
	entries, err := e.reports.History(ctx, f)
	if err != nil {
		return Page[entity.StockHistoryEntry]{}, err
	}
	for i := range entries {
		entries[i].BalanceBefore = balance
		balance = balance.Add(entries[i].QuantityChange)
		entries[i].BalanceAfter = balance
	}
	if desc {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	return paginate(entries, q.PageQuery), nil
}

// authorize SELLER debe indicar bodega; la bodega indicada debe existir en la empresa.
func (e *Engine) authorize(ctx context.Context, actor entity.Actor, companyID, warehouseID string) error {
	if companyID == "" {
		return domain.NewValidationError(domain.ReasonMissingCompany, "")
	}
	if !actor.CanRead(warehouseID) {
		return domain.ErrForbidden
	}
	if warehouseID == "" {
		return nil
	}
	wh, err := e.warehouses.GetByID(ctx, companyID, warehouseID)
	if err != nil {
		return err
	}
	if wh == nil {
		return domain.NewValidationError(domain.ReasonWarehouseNotFound, warehouseID)
	}
	return nil
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func paginate[T any](items []T, q PageQuery) Page[T] {
	limit, offset := q.Limit, q.Offset
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	p := Page[T]{Total: len(items), Limit: limit, Offset: offset, Items: []T{}}
	if offset >= len(items) {
		return p
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	p.Items = items[offset:end]
	return p
}

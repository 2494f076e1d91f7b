package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

var _ repository.StockEventRepository = (*StockEventRepo)(nil)

const eventColumns = `id, company_id, type, warehouse_id, occurred_at, created_at,
	COALESCE(reason_code, ''), notes, created_by, idempotency_key, transfer_id`

// StockEventRepo libro de eventos sobre PostgreSQL (usable con pool o tx).
type StockEventRepo struct {
	q Querier
}

// NewStockEventRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockEventRepository(q Querier) *StockEventRepo {
	return &StockEventRepo{q: q}
}

// Create inserta el evento y sus líneas en un solo batch.
func (r *StockEventRepo) Create(ctx context.Context, ev *entity.StockEvent) error {
	b := &pgx.Batch{}
	b.Queue(`
		INSERT INTO stock_events (id, company_id, type, warehouse_id, occurred_at, created_at,
			reason_code, notes, created_by, idempotency_key, transfer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		ev.ID, ev.CompanyID, string(ev.Type), ev.WarehouseID, ev.OccurredAt, ev.CreatedAt,
		nullable(string(ev.ReasonCode)), ev.Notes, ev.CreatedBy, nullable(ev.IdempotencyKey), nullable(ev.TransferID),
	)
	for i, l := range ev.Lines {
		b.Queue(`
			INSERT INTO stock_event_lines (id, event_id, line_no, variant_id, quantity)
			VALUES ($1, $2, $3, $4, $5)`,
			l.ID, ev.ID, i+1, l.VariantID, l.Quantity,
		)
	}
	br := r.q.SendBatch(ctx, b)
	for range b.QueuedQueries {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			if isUniqueViolation(err) {
				return fmt.Errorf("insert stock event %s: %w", ev.ID, domain.ErrConflict)
			}
			return fmt.Errorf("insert stock event: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("insert stock event: %w", err)
	}
	return nil
}

// GetByID obtiene un evento con sus líneas; nil, nil si no existe.
func (r *StockEventRepo) GetByID(ctx context.Context, companyID, id string) (*entity.StockEvent, error) {
	if !validUUID(id) {
		return nil, nil
	}
	ev, err := scanEvent(r.q.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM stock_events WHERE company_id = $1 AND id = $2`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock event: %w", err)
	}
	if err := r.loadLines(ctx, []*entity.StockEvent{ev}); err != nil {
		return nil, err
	}
	return ev, nil
}

// GetByIdempotencyKey obtiene el evento registrado con la clave; nil, nil si no existe.
func (r *StockEventRepo) GetByIdempotencyKey(ctx context.Context, companyID, key string) (*entity.StockEvent, error) {
	ev, err := scanEvent(r.q.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM stock_events WHERE company_id = $1 AND idempotency_key = $2`, companyID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock event by key: %w", err)
	}
	if err := r.loadLines(ctx, []*entity.StockEvent{ev}); err != nil {
		return nil, err
	}
	return ev, nil
}

// List filtra y pagina, más recientes primero. Devuelve también el total sin paginar.
func (r *StockEventRepo) List(ctx context.Context, f entity.StockEventFilter) ([]*entity.StockEvent, int, error) {
	c := &conditions{}
	c.add("e.company_id = ?", f.CompanyID)
	if f.Type != "" {
		c.add("e.type = ?", string(f.Type))
	}
	if f.WarehouseID != "" {
		if !validUUID(f.WarehouseID) {
			return []*entity.StockEvent{}, 0, nil
		}
		c.add("e.warehouse_id = ?", f.WarehouseID)
	}
	if f.ReasonCode != "" {
		c.add("e.reason_code = ?", string(f.ReasonCode))
	}
	if f.OccurredFrom != nil {
		c.add("e.occurred_at >= ?", *f.OccurredFrom)
	}
	if f.OccurredTo != nil {
		c.add("e.occurred_at <= ?", *f.OccurredTo)
	}
	if f.VariantID != "" {
		if !validUUID(f.VariantID) {
			return []*entity.StockEvent{}, 0, nil
		}
		c.add("EXISTS (SELECT 1 FROM stock_event_lines l WHERE l.event_id = e.id AND l.variant_id = ?)", f.VariantID)
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM stock_events e`+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count stock events: %w", err)
	}

	query := `SELECT ` + eventColumns + ` FROM stock_events e` + c.where() +
		` ORDER BY e.occurred_at DESC, e.created_at DESC LIMIT ` + c.param(f.Limit) + ` OFFSET ` + c.param(f.Offset)
	rows, err := r.q.Query(ctx, query, c.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list stock events: %w", err)
	}
	defer rows.Close()

	list := []*entity.StockEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan stock event: %w", err)
		}
		list = append(list, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()
	if err := r.loadLines(ctx, list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// loadLines carga las líneas de todos los eventos en una sola consulta.
func (r *StockEventRepo) loadLines(ctx context.Context, events []*entity.StockEvent) error {
	if len(events) == 0 {
		return nil
	}
	byID := make(map[string]*entity.StockEvent, len(events))
	ids := make([]string, len(events))
	for i, ev := range events {
		byID[ev.ID] = ev
		ids[i] = ev.ID
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, event_id, variant_id, quantity
		FROM stock_event_lines WHERE event_id = ANY($1)
		ORDER BY event_id, line_no`, ids)
	if err != nil {
		return fmt.Errorf("list stock event lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l entity.StockEventLine
		if err := rows.Scan(&l.ID, &l.EventID, &l.VariantID, &l.Quantity); err != nil {
			return fmt.Errorf("scan stock event line: %w", err)
		}
		ev := byID[l.EventID]
		ev.Lines = append(ev.Lines, l)
	}
	return rows.Err()
}

func scanEvent(row pgx.Row) (*entity.StockEvent, error) {
	var (
		ev              entity.StockEvent
		typ, reason     string
		key, transferID *string
	)
	err := row.Scan(&ev.ID, &ev.CompanyID, &typ, &ev.WarehouseID, &ev.OccurredAt, &ev.CreatedAt,
		&reason, &ev.Notes, &ev.CreatedBy, &key, &transferID)
	if err != nil {
		return nil, err
	}
	ev.Type = entity.StockEventType(typ)
	ev.ReasonCode = entity.ReasonCode(reason)
	ev.IdempotencyKey = deref(key)
	ev.TransferID = deref(transferID)
	ev.OccurredAt = ev.OccurredAt.UTC()
	ev.CreatedAt = ev.CreatedAt.UTC()
	return &ev, nil
}

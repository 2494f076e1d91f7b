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

var _ repository.StockTransferRepository = (*StockTransferRepo)(nil)

const transferColumns = `id, company_id, origin_warehouse_id, destination_warehouse_id, status,
	occurred_at, notes, created_by, created_at, confirmed_by, confirmed_at, cancelled_by, cancelled_at,
	outbound_event_id, inbound_event_id, idempotency_key, updated_at`

// StockTransferRepo transferencias entre bodegas sobre PostgreSQL.
type StockTransferRepo struct {
	q Querier
}

// NewStockTransferRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockTransferRepository(q Querier) *StockTransferRepo {
	return &StockTransferRepo{q: q}
}

// Create inserta la cabecera y las líneas en un batch.
func (r *StockTransferRepo) Create(ctx context.Context, t *entity.StockTransfer) error {
	b := &pgx.Batch{}
	b.Queue(`
		INSERT INTO stock_transfers (id, company_id, origin_warehouse_id, destination_warehouse_id, status,
			occurred_at, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.CompanyID, t.OriginWarehouseID, t.DestinationWarehouseID, string(t.Status),
		t.OccurredAt, t.Notes, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	for i, l := range t.Lines {
		b.Queue(`
			INSERT INTO stock_transfer_lines (id, transfer_id, line_no, variant_id, quantity)
			VALUES ($1, $2, $3, $4, $5)`,
			l.ID, t.ID, i+1, l.VariantID, l.Quantity,
		)
	}
	br := r.q.SendBatch(ctx, b)
	for range b.QueuedQueries {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			if isUniqueViolation(err) {
				return fmt.Errorf("insert transfer %s: %w", t.ID, domain.ErrConflict)
			}
			return fmt.Errorf("insert transfer: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

func (r *StockTransferRepo) GetByID(ctx context.Context, companyID, id string) (*entity.StockTransfer, error) {
	return r.get(ctx, companyID, id, "")
}

// GetForUpdate toma un lock de fila (SELECT ... FOR UPDATE) hasta el fin de la transacción.
func (r *StockTransferRepo) GetForUpdate(ctx context.Context, companyID, id string) (*entity.StockTransfer, error) {
	return r.get(ctx, companyID, id, " FOR UPDATE")
}

func (r *StockTransferRepo) get(ctx context.Context, companyID, id, lock string) (*entity.StockTransfer, error) {
	if !validUUID(id) {
		return nil, nil
	}
	t, err := scanTransfer(r.q.QueryRow(ctx,
		`SELECT `+transferColumns+` FROM stock_transfers WHERE company_id = $1 AND id = $2`+lock, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	if err := r.loadLines(ctx, []*entity.StockTransfer{t}); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateStatus persiste la transición solo si el estado actual sigue siendo from.
func (r *StockTransferRepo) UpdateStatus(ctx context.Context, t *entity.StockTransfer, from entity.TransferStatus) (bool, error) {
	query := `
		UPDATE stock_transfers SET
			status = $3, confirmed_by = $4, confirmed_at = $5, cancelled_by = $6, cancelled_at = $7,
			outbound_event_id = $8, inbound_event_id = $9, idempotency_key = $10, updated_at = $11
		WHERE company_id = $1 AND id = $2 AND status = $12`
	tag, err := r.q.Exec(ctx, query,
		t.CompanyID, t.ID, string(t.Status),
		nullable(t.ConfirmedBy), t.ConfirmedAt, nullable(t.CancelledBy), t.CancelledAt,
		nullable(t.OutboundEventID), nullable(t.InboundEventID), nullable(t.IdempotencyKey), t.UpdatedAt,
		string(from),
	)
	if err != nil {
		return false, fmt.Errorf("update transfer status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List filtra y pagina por fecha de creación descendente.
func (r *StockTransferRepo) List(ctx context.Context, f entity.TransferFilter) ([]*entity.StockTransfer, int, error) {
	c := &conditions{}
	c.add("company_id = ?", f.CompanyID)
	if f.Status != "" {
		c.add("status = ?", string(f.Status))
	}
	if f.OriginWarehouseID != "" {
		if !validUUID(f.OriginWarehouseID) {
			return []*entity.StockTransfer{}, 0, nil
		}
		c.add("origin_warehouse_id = ?", f.OriginWarehouseID)
	}
	if f.DestinationWarehouseID != "" {
		if !validUUID(f.DestinationWarehouseID) {
			return []*entity.StockTransfer{}, 0, nil
		}
		c.add("destination_warehouse_id = ?", f.DestinationWarehouseID)
	}
	if f.OccurredFrom != nil {
		c.add("occurred_at >= ?", *f.OccurredFrom)
	}
	if f.OccurredTo != nil {
		c.add("occurred_at <= ?", *f.OccurredTo)
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM stock_transfers`+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transfers: %w", err)
	}
	query := `SELECT ` + transferColumns + ` FROM stock_transfers` + c.where() +
		` ORDER BY created_at DESC, id LIMIT ` + c.param(f.Limit) + ` OFFSET ` + c.param(f.Offset)
	rows, err := r.q.Query(ctx, query, c.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	list := []*entity.StockTransfer{}
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transfer: %w", err)
		}
		list = append(list, t)
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

func (r *StockTransferRepo) loadLines(ctx context.Context, transfers []*entity.StockTransfer) error {
	if len(transfers) == 0 {
		return nil
	}
	byID := make(map[string]*entity.StockTransfer, len(transfers))
	ids := make([]string, len(transfers))
	for i, t := range transfers {
		byID[t.ID] = t
		ids[i] = t.ID
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, transfer_id, variant_id, quantity
		FROM stock_transfer_lines WHERE transfer_id = ANY($1)
		ORDER BY transfer_id, line_no`, ids)
	if err != nil {
		return fmt.Errorf("list transfer lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l entity.StockTransferLine
		if err := rows.Scan(&l.ID, &l.TransferID, &l.VariantID, &l.Quantity); err != nil {
			return fmt.Errorf("scan transfer line: %w", err)
		}
		t := byID[l.TransferID]
		t.Lines = append(t.Lines, l)
	}
	return rows.Err()
}

func scanTransfer(row pgx.Row) (*entity.StockTransfer, error) {
	var (
		t                                  entity.StockTransfer
		status                             string
		confirmedBy, cancelledBy           *string
		outboundID, inboundID, idempotency *string
	)
	err := row.Scan(&t.ID, &t.CompanyID, &t.OriginWarehouseID, &t.DestinationWarehouseID, &status,
		&t.OccurredAt, &t.Notes, &t.CreatedBy, &t.CreatedAt, &confirmedBy, &t.ConfirmedAt, &cancelledBy, &t.CancelledAt,
		&outboundID, &inboundID, &idempotency, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = entity.TransferStatus(status)
	t.ConfirmedBy = deref(confirmedBy)
	t.CancelledBy = deref(cancelledBy)
	t.OutboundEventID = deref(outboundID)
	t.InboundEventID = deref(inboundID)
	t.IdempotencyKey = deref(idempotency)
	t.OccurredAt = t.OccurredAt.UTC()
	return &t, nil
}

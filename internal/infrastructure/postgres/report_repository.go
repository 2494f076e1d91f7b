package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

var _ repository.StockReportRepository = (*ReportRepo)(nil)

// ReportRepo consultas de solo lectura sobre saldos y libro de eventos.
type ReportRepo struct {
	q Querier
}

// NewReportRepository construye el adaptador de reportes. Pasar pool (Querier).
func NewReportRepository(q Querier) *ReportRepo {
	return &ReportRepo{q: q}
}

// Snapshot lee los saldos materializados.
func (r *ReportRepo) Snapshot(ctx context.Context, f entity.StockSnapshotFilter) ([]entity.StockSnapshotRow, error) {
	return r.snapshot(ctx, f, &conditions{}, "stock_items s")
}

// SnapshotAsOf reconstruye los saldos sumando las líneas con occurred_at <= AsOf.
func (r *ReportRepo) SnapshotAsOf(ctx context.Context, f entity.StockSnapshotFilter) ([]entity.StockSnapshotRow, error) {
	if f.AsOf == nil {
		return r.Snapshot(ctx, f)
	}
	c := &conditions{}
	source := `(
		SELECT e.company_id, e.warehouse_id, l.variant_id, l.quantity
		FROM stock_event_lines l JOIN stock_events e ON e.id = l.event_id
		WHERE e.occurred_at <= ` + c.param(f.AsOf.UTC()) + `) s`
	return r.snapshot(ctx, f, c, source)
}

func (r *ReportRepo) snapshot(ctx context.Context, f entity.StockSnapshotFilter, c *conditions, source string) ([]entity.StockSnapshotRow, error) {
	if !snapshotConditions(c, f) {
		return []entity.StockSnapshotRow{}, nil
	}
	whCols, whJoin, groupBy, orderBy := `'', ''`, ``, `v.id, p.id, b.id, cat.id`, `v.id`
	if !f.Aggregate {
		whCols = `w.id::text, w.name`
		whJoin = ` JOIN warehouses w ON w.id = s.warehouse_id`
		groupBy += `, w.id`
		orderBy += `, w.id`
	}
	having := ``
	if !f.IncludeZero {
		having = ` HAVING SUM(s.quantity) <> 0`
	}
	query := `
		SELECT v.id, v.sku, p.id, p.name,
			COALESCE(b.id::text, ''), COALESCE(b.name, ''), COALESCE(cat.id::text, ''), COALESCE(cat.name, ''),
			` + whCols + `, SUM(s.quantity), p.expiry_date
		FROM ` + source + `
		JOIN product_variants v ON v.id = s.variant_id
		JOIN products p ON p.id = v.product_id
		LEFT JOIN brands b ON b.id = p.brand_id
		LEFT JOIN categories cat ON cat.id = p.category_id` + whJoin + c.where() + `
		GROUP BY ` + groupBy + having + `
		ORDER BY ` + orderBy

	rows, err := r.q.Query(ctx, query, c.args...)
	if err != nil {
		return nil, fmt.Errorf("stock snapshot: %w", err)
	}
	defer rows.Close()
	out := []entity.StockSnapshotRow{}
	for rows.Next() {
		var row entity.StockSnapshotRow
		err := rows.Scan(&row.VariantID, &row.SKU, &row.ProductID, &row.ProductName,
			&row.BrandID, &row.BrandName, &row.CategoryID, &row.CategoryName,
			&row.WarehouseID, &row.WarehouseName, &row.Quantity, &row.ExpiryDate)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if row.ExpiryDate != nil {
			d := entity.TruncateDay(*row.ExpiryDate)
			row.ExpiryDate = &d
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// snapshotConditions agrega los filtros; false si algún ID no puede existir.
func snapshotConditions(c *conditions, f entity.StockSnapshotFilter) bool {
	c.add("s.company_id = ?", f.CompanyID)
	for _, id := range []struct{ clause, value string }{
		{"s.warehouse_id = ?", f.WarehouseID},
		{"v.product_id = ?", f.ProductID},
		{"p.category_id = ?", f.CategoryID},
		{"p.brand_id = ?", f.BrandID},
		{"v.id = ?", f.VariantID},
	} {
		if id.value == "" {
			continue
		}
		if !validUUID(id.value) {
			return false
		}
		c.add(id.clause, id.value)
	}
	if f.SKU != "" {
		c.add("v.sku ILIKE ?", likePattern(f.SKU))
	}
	if len(f.AttributeValueIDs) > 0 {
		c.add("EXISTS (SELECT 1 FROM variant_attribute_values a WHERE a.variant_id = v.id AND a.attribute_value_id = ANY(?))",
			f.AttributeValueIDs)
	}
	return true
}

// historyConditions filtros comunes de historial y saldo inicial.
func historyConditions(c *conditions, f entity.StockHistoryFilter) bool {
	c.add("e.company_id = ?", f.CompanyID)
	for _, id := range []struct{ clause, value string }{
		{"l.variant_id = ?", f.VariantID},
		{"v.product_id = ?", f.ProductID},
		{"e.warehouse_id = ?", f.WarehouseID},
	} {
		if id.value == "" {
			continue
		}
		if !validUUID(id.value) {
			return false
		}
		c.add(id.clause, id.value)
	}
	if len(f.AttributeValueIDs) > 0 {
		c.add("EXISTS (SELECT 1 FROM variant_attribute_values a WHERE a.variant_id = l.variant_id AND a.attribute_value_id = ANY(?))",
			f.AttributeValueIDs)
	}
	return true
}

const historyFrom = `
	FROM stock_event_lines l
	JOIN stock_events e ON e.id = l.event_id
	JOIN product_variants v ON v.id = l.variant_id`

// BalanceBefore suma los deltas con occurred_at estrictamente anterior a before.
func (r *ReportRepo) BalanceBefore(ctx context.Context, f entity.StockHistoryFilter, before time.Time) (decimal.Decimal, error) {
	c := &conditions{}
	if !historyConditions(c, f) {
		return decimal.Zero, nil
	}
	c.add("e.occurred_at < ?", before.UTC())
	var sum decimal.Decimal
	if err := r.q.QueryRow(ctx, `SELECT COALESCE(SUM(l.quantity), 0)`+historyFrom+c.where(), c.args...).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("balance before: %w", err)
	}
	return sum, nil
}

// History líneas del libro en orden cronológico, con From y To inclusivos.
func (r *ReportRepo) History(ctx context.Context, f entity.StockHistoryFilter) ([]entity.StockHistoryEntry, error) {
	c := &conditions{}
	if !historyConditions(c, f) {
		return []entity.StockHistoryEntry{}, nil
	}
	if f.From != nil {
		c.add("e.occurred_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		c.add("e.occurred_at <= ?", f.To.UTC())
	}
	query := `
		SELECT e.id, e.type, e.warehouse_id, w.name, l.variant_id, e.occurred_at, e.created_at,
			l.quantity, COALESCE(e.reason_code, ''), e.notes` + historyFrom + `
	JOIN warehouses w ON w.id = e.warehouse_id` + c.where() + `
		ORDER BY e.occurred_at, e.created_at, e.id, l.line_no`
	rows, err := r.q.Query(ctx, query, c.args...)
	if err != nil {
		return nil, fmt.Errorf("stock history: %w", err)
	}
	defer rows.Close()
	out := []entity.StockHistoryEntry{}
	for rows.Next() {
		var (
			h           entity.StockHistoryEntry
			typ, reason string
		)
		err := rows.Scan(&h.EventID, &typ, &h.WarehouseID, &h.WarehouseName, &h.VariantID,
			&h.OccurredAt, &h.CreatedAt, &h.QuantityChange, &reason, &h.Notes)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		h.EventType = entity.StockEventType(typ)
		h.ReasonCode = entity.ReasonCode(reason)
		h.OccurredAt = h.OccurredAt.UTC()
		h.CreatedAt = h.CreatedAt.UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}

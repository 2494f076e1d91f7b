package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

var _ repository.StockReportRepository = (*ReportRepo)(nil)

var fold = cases.Fold()

// ReportRepo consultas de reportes sobre el estado confirmado.
type ReportRepo struct {
	view    view
	catalog *Catalog
}

// Snapshot agrupa los saldos materializados.
func (r *ReportRepo) Snapshot(_ context.Context, f entity.StockSnapshotFilter) ([]entity.StockSnapshotRow, error) {
	st, release := r.view()
	balances := make(map[itemKey]decimal.Decimal)
	for _, it := range st.items {
		if it.CompanyID != f.CompanyID {
			continue
		}
		if f.WarehouseID != "" && it.WarehouseID != f.WarehouseID {
			continue
		}
		k := groupKey(f, it.WarehouseID, it.VariantID)
		balances[k] = balances[k].Add(it.Quantity)
	}
	release()
	return r.rows(f, balances), nil
}

// SnapshotAsOf suma las líneas de los eventos con occurred_at <= AsOf.
func (r *ReportRepo) SnapshotAsOf(_ context.Context, f entity.StockSnapshotFilter) ([]entity.StockSnapshotRow, error) {
	if f.AsOf == nil {
		return r.Snapshot(context.Background(), f)
	}
	st, release := r.view()
	balances := make(map[itemKey]decimal.Decimal)
	for _, id := range st.order {
		ev := st.events[id]
		if ev.CompanyID != f.CompanyID || ev.OccurredAt.After(*f.AsOf) {
			continue
		}
		if f.WarehouseID != "" && ev.WarehouseID != f.WarehouseID {
			continue
		}
		for _, l := range ev.Lines {
			k := groupKey(f, ev.WarehouseID, l.VariantID)
			balances[k] = balances[k].Add(l.Quantity)
		}
	}
	release()
	return r.rows(f, balances), nil
}

// BalanceBefore suma los deltas anteriores a before con los mismos filtros del historial.
func (r *ReportRepo) BalanceBefore(_ context.Context, f entity.StockHistoryFilter, before time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, c := range r.historyCandidates(f) {
		if c.ev.OccurredAt.Before(before) {
			total = total.Add(c.line.Quantity)
		}
	}
	return total, nil
}

// History devuelve las líneas del rango ordenadas por (occurred_at, created_at).
func (r *ReportRepo) History(_ context.Context, f entity.StockHistoryFilter) ([]entity.StockHistoryEntry, error) {
	var out []entity.StockHistoryEntry
	for _, c := range r.historyCandidates(f) {
		if f.From != nil && c.ev.OccurredAt.Before(*f.From) {
			continue
		}
		if f.To != nil && c.ev.OccurredAt.After(*f.To) {
			continue
		}
		out = append(out, entity.StockHistoryEntry{
			EventID:        c.ev.ID,
			EventType:      c.ev.Type,
			WarehouseID:    c.ev.WarehouseID,
			WarehouseName:  r.catalog.warehouseName(c.ev.WarehouseID),
			VariantID:      c.line.VariantID,
			OccurredAt:     c.ev.OccurredAt,
			CreatedAt:      c.ev.CreatedAt,
			QuantityChange: c.line.Quantity,
			ReasonCode:     c.ev.ReasonCode,
			Notes:          c.ev.Notes,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

type historyCandidate struct {
	ev   *entity.StockEvent
	line entity.StockEventLine
}

// historyCandidates líneas que cumplen variante, producto, bodega y atributos, en orden de inserción.
func (r *ReportRepo) historyCandidates(f entity.StockHistoryFilter) []historyCandidate {
	st, release := r.view()
	var raw []historyCandidate
	for _, id := range st.order {
		ev := st.events[id]
		if ev.CompanyID != f.CompanyID {
			continue
		}
		if f.WarehouseID != "" && ev.WarehouseID != f.WarehouseID {
			continue
		}
		for _, l := range ev.Lines {
			if f.VariantID != "" && l.VariantID != f.VariantID {
				continue
			}
			raw = append(raw, historyCandidate{ev: ev, line: l})
		}
	}
	release()

	if f.ProductID == "" && len(f.AttributeValueIDs) == 0 {
		return raw
	}
	out := raw[:0]
	for _, c := range raw {
		_, v, ok := r.catalog.row(f.CompanyID, c.line.VariantID, "")
		if !ok {
			continue
		}
		if f.ProductID != "" && v.ProductID != f.ProductID {
			continue
		}
		if !hasAnyAttribute(v.AttributeValueIDs, f.AttributeValueIDs) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (r *ReportRepo) rows(f entity.StockSnapshotFilter, balances map[itemKey]decimal.Decimal) []entity.StockSnapshotRow {
	out := make([]entity.StockSnapshotRow, 0, len(balances))
	for k, qty := range balances {
		if !f.IncludeZero && qty.IsZero() {
			continue
		}
		row, v, ok := r.catalog.row(f.CompanyID, k.variant, k.warehouse)
		if !ok || !matchesSnapshot(f, v) {
			continue
		}
		row.Quantity = qty
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VariantID != out[j].VariantID {
			return out[i].VariantID < out[j].VariantID
		}
		return out[i].WarehouseID < out[j].WarehouseID
	})
	return out
}

func groupKey(f entity.StockSnapshotFilter, warehouseID, variantID string) itemKey {
	if f.Aggregate {
		warehouseID = ""
	}
	return itemKey{company: f.CompanyID, warehouse: warehouseID, variant: variantID}
}

func matchesSnapshot(f entity.StockSnapshotFilter, v *entity.ProductVariant) bool {
	if f.VariantID != "" && v.ID != f.VariantID {
		return false
	}
	if f.ProductID != "" && v.ProductID != f.ProductID {
		return false
	}
	if f.BrandID != "" && v.Product.BrandID != f.BrandID {
		return false
	}
	if f.CategoryID != "" && v.Product.CategoryID != f.CategoryID {
		return false
	}
	if sku := strings.TrimSpace(f.SKU); sku != "" && !strings.Contains(fold.String(v.SKU), fold.String(sku)) {
		return false
	}
	return hasAnyAttribute(v.AttributeValueIDs, f.AttributeValueIDs)
}

// hasAnyAttribute sin filtro siempre cumple; con filtro basta un valor en común.
func hasAnyAttribute(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

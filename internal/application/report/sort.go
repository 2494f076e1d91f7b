package report

import (
	"cmp"
	"sort"
	"strings"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

type rowCompare func(a, b entity.StockSnapshotRow) int

var rowFields = map[string]rowCompare{
	"sku":           func(a, b entity.StockSnapshotRow) int { return cmp.Compare(strings.ToLower(a.SKU), strings.ToLower(b.SKU)) },
	"productName":   func(a, b entity.StockSnapshotRow) int { return cmp.Compare(strings.ToLower(a.ProductName), strings.ToLower(b.ProductName)) },
	"brandName":     func(a, b entity.StockSnapshotRow) int { return cmp.Compare(strings.ToLower(a.BrandName), strings.ToLower(b.BrandName)) },
	"categoryName":  func(a, b entity.StockSnapshotRow) int { return cmp.Compare(strings.ToLower(a.CategoryName), strings.ToLower(b.CategoryName)) },
	"warehouseName": func(a, b entity.StockSnapshotRow) int { return cmp.Compare(strings.ToLower(a.WarehouseName), strings.ToLower(b.WarehouseName)) },
	"quantity":      func(a, b entity.StockSnapshotRow) int { return a.Quantity.Cmp(b.Quantity) },
}

// buildSorter arma un ordenamiento estable multi-campo; own resuelve campos propios
// de la vista antes de los campos comunes de la fila.
func buildSorter[T any](orders []SortOrder, def SortOrder, row func(T) entity.StockSnapshotRow, own map[string]func(a, b T) int) (func([]T), error) {
	if len(orders) == 0 {
		orders = []SortOrder{def}
	}
	cmps := make([]func(a, b T) int, 0, len(orders))
	for _, o := range orders {
		var c func(a, b T) int
		if f, ok := own[o.Field]; ok {
			c = f
		} else if f, ok := rowFields[o.Field]; ok {
			c = func(a, b T) int { return f(row(a), row(b)) }
		} else {
			return nil, domain.NewValidationError(domain.ReasonInvalidSort, o.Field)
		}
		if o.Desc {
			asc := c
			c = func(a, b T) int { return -asc(a, b) }
		}
		cmps = append(cmps, c)
	}
	return func(items []T) {
		sort.SliceStable(items, func(i, j int) bool {
			for _, c := range cmps {
				if r := c(items[i], items[j]); r != 0 {
					return r < 0
				}
			}
			return false
		})
	}, nil
}

func snapshotSorter(orders []SortOrder) (func([]entity.StockSnapshotView), error) {
	return buildSorter(orders, SortOrder{Field: "quantity", Desc: true},
		func(v entity.StockSnapshotView) entity.StockSnapshotRow { return v.StockSnapshotRow }, nil)
}

func lowStockSorter(orders []SortOrder) (func([]entity.LowStockView), error) {
	return buildSorter(orders, SortOrder{Field: "deficit"},
		func(v entity.LowStockView) entity.StockSnapshotRow { return v.StockSnapshotRow },
		map[string]func(a, b entity.LowStockView) int{
			"deficit": func(a, b entity.LowStockView) int { return a.Deficit.Cmp(b.Deficit) },
		})
}

func expiringSorter(orders []SortOrder) (func([]entity.ExpiringItemView), error) {
	byExpiry := func(a, b entity.ExpiringItemView) int { return a.ExpiryDate.Compare(b.ExpiryDate) }
	return buildSorter(orders, SortOrder{Field: "daysUntilExpiry"},
		func(v entity.ExpiringItemView) entity.StockSnapshotRow { return v.StockSnapshotRow },
		map[string]func(a, b entity.ExpiringItemView) int{
			"expiryDate":      byExpiry,
			"daysUntilExpiry": func(a, b entity.ExpiringItemView) int { return cmp.Compare(a.DaysUntilExpiry, b.DaysUntilExpiry) },
		})
}

// historyOrder el historial solo se ordena por occurredAt; true = descendente.
func historyOrder(orders []SortOrder) (bool, error) {
	desc := false
	for _, o := range orders {
		if o.Field != "occurredAt" {
			return false, domain.NewValidationError(domain.ReasonInvalidSort, o.Field)
		}
		desc = o.Desc
	}
	return desc, nil
}

// ParseSort interpreta valores "campo,dir" (dir = asc|desc, por defecto asc).
func ParseSort(raw []string) []SortOrder {
	var out []SortOrder
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		field, dir, _ := strings.Cut(s, ",")
		out = append(out, SortOrder{
			Field: strings.TrimSpace(field),
			Desc:  strings.EqualFold(strings.TrimSpace(dir), "desc"),
		})
	}
	return out
}

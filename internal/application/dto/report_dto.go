package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger-api/internal/application/report"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// StockRowDTO columnas comunes de los reportes de saldo.
type StockRowDTO struct {
	VariantID     string          `json:"variant_id"`
	SKU           string          `json:"sku"`
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	BrandID       string          `json:"brand_id,omitempty"`
	BrandName     string          `json:"brand_name,omitempty"`
	CategoryID    string          `json:"category_id,omitempty"`
	CategoryName  string          `json:"category_name,omitempty"`
	WarehouseID   string          `json:"warehouse_id,omitempty"` // vacío en vista agregada
	WarehouseName string          `json:"warehouse_name,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
}

type StockSnapshotDTO struct {
	StockRowDTO
	ExpiryDate *string   `json:"expiry_date,omitempty"` // YYYY-MM-DD
	AsOf       time.Time `json:"as_of"`
}

type LowStockDTO struct {
	StockRowDTO
	Threshold decimal.Decimal `json:"threshold"`
	Deficit   decimal.Decimal `json:"deficit"` // negativo = faltante
}

type ExpiringItemDTO struct {
	StockRowDTO
	ExpiryDate      string `json:"expiry_date"`
	DaysUntilExpiry int    `json:"days_until_expiry"`
}

type StockHistoryDTO struct {
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	WarehouseID    string          `json:"warehouse_id"`
	WarehouseName  string          `json:"warehouse_name"`
	VariantID      string          `json:"variant_id"`
	OccurredAt     time.Time       `json:"occurred_at"`
	CreatedAt      time.Time       `json:"created_at"`
	QuantityChange decimal.Decimal `json:"quantity_change"`
	BalanceBefore  decimal.Decimal `json:"balance_before"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	ReasonCode     string          `json:"reason_code,omitempty"`
	Notes          string          `json:"notes,omitempty"`
}

const dateLayout = "2006-01-02"

func toStockRow(r entity.StockSnapshotRow) StockRowDTO {
	return StockRowDTO{
		VariantID:     r.VariantID,
		SKU:           r.SKU,
		ProductID:     r.ProductID,
		ProductName:   r.ProductName,
		BrandID:       r.BrandID,
		BrandName:     r.BrandName,
		CategoryID:    r.CategoryID,
		CategoryName:  r.CategoryName,
		WarehouseID:   r.WarehouseID,
		WarehouseName: r.WarehouseName,
		Quantity:      r.Quantity,
	}
}

func mapPage[T, D any](p report.Page[T], fn func(T) D) ListResponse[D] {
	items := make([]D, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, fn(it))
	}
	return ListResponse[D]{
		Items:        items,
		PageResponse: PageResponse{Limit: p.Limit, Offset: p.Offset, Total: p.Total},
	}
}

// ToSnapshotList mapea la página del reporte de saldo.
func ToSnapshotList(p report.Page[entity.StockSnapshotView]) ListResponse[StockSnapshotDTO] {
	return mapPage(p, func(v entity.StockSnapshotView) StockSnapshotDTO {
		out := StockSnapshotDTO{StockRowDTO: toStockRow(v.StockSnapshotRow), AsOf: v.AsOf}
		if v.ExpiryDate != nil {
			d := v.ExpiryDate.Format(dateLayout)
			out.ExpiryDate = &d
		}
		return out
	})
}

// ToLowStockList mapea la página del reporte de bajo stock.
func ToLowStockList(p report.Page[entity.LowStockView]) ListResponse[LowStockDTO] {
	return mapPage(p, func(v entity.LowStockView) LowStockDTO {
		return LowStockDTO{StockRowDTO: toStockRow(v.StockSnapshotRow), Threshold: v.Threshold, Deficit: v.Deficit}
	})
}

// ToExpiringList mapea la página del reporte de vencimientos.
func ToExpiringList(p report.Page[entity.ExpiringItemView]) ListResponse[ExpiringItemDTO] {
	return mapPage(p, func(v entity.ExpiringItemView) ExpiringItemDTO {
		return ExpiringItemDTO{
			StockRowDTO:     toStockRow(v.StockSnapshotRow),
			ExpiryDate:      v.ExpiryDate.Format(dateLayout),
			DaysUntilExpiry: v.DaysUntilExpiry,
		}
	})
}

// ToHistoryList mapea la página del historial.
func ToHistoryList(p report.Page[entity.StockHistoryEntry]) ListResponse[StockHistoryDTO] {
	return mapPage(p, func(h entity.StockHistoryEntry) StockHistoryDTO {
		return StockHistoryDTO{
			EventID:        h.EventID,
			EventType:      string(h.EventType),
			WarehouseID:    h.WarehouseID,
			WarehouseName:  h.WarehouseName,
			VariantID:      h.VariantID,
			OccurredAt:     h.OccurredAt,
			CreatedAt:      h.CreatedAt,
			QuantityChange: h.QuantityChange,
			BalanceBefore:  h.BalanceBefore,
			BalanceAfter:   h.BalanceAfter,
			ReasonCode:     string(h.ReasonCode),
			Notes:          h.Notes,
		}
	})
}

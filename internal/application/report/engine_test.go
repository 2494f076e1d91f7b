package report_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger-api/internal/application/report"
	"github.com/jhoicas/stock-ledger-api/internal/application/stock"
	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/infrastructure/memory"
)

const company = "c1"

var (
	admin  = entity.Actor{ID: "u-admin", Role: entity.RoleAdmin}
	seller = entity.Actor{ID: "u-seller", Role: entity.RoleSeller}
	today  = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	store  *memory.Store
	events *stock.EventStore
	engine *report.Engine
	clock  time.Time
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// newFixture catálogo con dos bodegas, marca, categoría y productos con distintos vencimientos.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	cat := store.Catalog()
	cat.PutWarehouse(entity.Warehouse{ID: "w1", CompanyID: company, Name: "Principal", Active: true})
	cat.PutWarehouse(entity.Warehouse{ID: "w2", CompanyID: company, Name: "Sucursal", Active: true})
	cat.PutBrand(entity.Brand{ID: "b1", CompanyID: company, Name: "Acme"})
	cat.PutCategory(entity.Category{ID: "cat1", CompanyID: company, Name: "Ropa"})
	cat.PutCategory(entity.Category{ID: "cat2", CompanyID: company, Name: "Lácteos"})
	cat.PutProduct(entity.Product{ID: "p1", CompanyID: company, Name: "Camiseta", BrandID: "b1", CategoryID: "cat1", Active: true})
	cat.PutProduct(entity.Product{ID: "pSoon", CompanyID: company, Name: "Yogur", CategoryID: "cat2", Active: true, ExpiryDate: day(2025, 6, 6)})
	cat.PutProduct(entity.Product{ID: "pPast", CompanyID: company, Name: "Kumis", CategoryID: "cat2", Active: true, ExpiryDate: day(2025, 5, 29)})
	cat.PutProduct(entity.Product{ID: "pLate", CompanyID: company, Name: "Queso", CategoryID: "cat2", Active: true, ExpiryDate: day(2025, 8, 1)})
	cat.PutVariant(entity.ProductVariant{ID: "v1", CompanyID: company, ProductID: "p1", SKU: "CAM-S", Active: true, AttributeValueIDs: []string{"talla-s"}})
	cat.PutVariant(entity.ProductVariant{ID: "v2", CompanyID: company, ProductID: "p1", SKU: "CAM-M", Active: true, AttributeValueIDs: []string{"talla-m"}})
	cat.PutVariant(entity.ProductVariant{ID: "vSoon", CompanyID: company, ProductID: "pSoon", SKU: "YOG-1", Active: true})
	cat.PutVariant(entity.ProductVariant{ID: "vPast", CompanyID: company, ProductID: "pPast", SKU: "KUM-1", Active: true})
	cat.PutVariant(entity.ProductVariant{ID: "vLate", CompanyID: company, ProductID: "pLate", SKU: "QUE-1", Active: true})

	f := &fixture{store: store, clock: today}
	now := func() time.Time { return f.clock }
	projector := stock.NewBalanceProjector(stock.ProjectorConfig{MaxRetries: 3}, stock.WithClock(now))
	guard := stock.NewIdempotencyGuard(stock.WithClock(now))
	f.events = stock.NewEventStore(store, store.Events(), cat, cat, projector, guard, stock.WithClock(now))
	f.engine = report.NewEngine(store.Reports(), cat, report.Config{
		LowStockThreshold: decimal.NewFromInt(10),
		ExpiringDaysAhead: 30,
	}, report.WithClock(now))
	return f
}

func (f *fixture) move(t *testing.T, typ entity.StockEventType, warehouseID, variantID string, q int64, at *time.Time) *entity.StockEvent {
	t.Helper()
	ev, err := f.events.Append(context.Background(), stock.AppendEventInput{
		CompanyID:   company,
		WarehouseID: warehouseID,
		Type:        typ,
		OccurredAt:  at,
		Lines:       []stock.LineInput{{VariantID: variantID, Quantity: decimal.NewFromInt(q)}},
		Actor:       admin,
	})
	require.NoError(t, err)
	return ev
}

func qtyOf(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// ─── Snapshot ───────────────────────────────────────────────────────────────

func TestSnapshot_ActualPorBodegaOrdenadoPorCantidad(t *testing.T) {
	f := newFixture(t)
	f.move(t, entity.EventInbound, "w1", "v1", 4, nil)
	f.move(t, entity.EventInbound, "w1", "v2", 9, nil)
	f.move(t, entity.EventInbound, "w2", "v1", 6, nil)

	page, err := f.engine.Snapshot(context.Background(), admin, report.SnapshotQuery{
		Filter: entity.StockSnapshotFilter{CompanyID: company},
	})

	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, "v2", page.Items[0].VariantID)
	assert.True(t, page.Items[0].Quantity.Equal(qtyOf(9)))
	assert.Equal(t, "Principal", page.Items[0].WarehouseName)
	assert.Equal(t, "Acme", page.Items[0].BrandName)
	assert.Equal(t, "Ropa", page.Items[0].CategoryName)
	assert.Equal(t, "Camiseta", page.Items[0].ProductName)
	assert.Equal(t, today, page.Items[0].AsOf)
}

func TestSnapshot_AgregadoYCeros(t *testing.T) {
	f := newFixture(t)
	f.move(t, entity.EventInbound, "w1", "v1", 4, nil)
	f.move(t, entity.EventInbound, "w2", "v1", 6, nil)
	f.move(t, entity.EventInbound, "w1", "v2", 2, nil)
	f.move(t, entity.EventOutbound, "w1", "v2", 2, nil)
	ctx := context.Background()

	page, err := f.engine.Snapshot(ctx, admin, report.SnapshotQuery{
		Filter: entity.StockSnapshotFilter{CompanyID: company, Aggregate: true},
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1, "v2 en cero no aparece")
	assert.Equal(t, "v1", page.Items[0].VariantID)
	assert.Empty(t, page.Items[0].WarehouseID)
	assert.True(t, page.Items[0].Quantity.Equal(qtyOf(10)))

	page, err = f.engine.Snapshot(ctx, admin, report.SnapshotQuery{
		Filter: entity.StockSnapshotFilter{CompanyID: company, Aggregate: true, IncludeZero: true},
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
}

func TestSnapshot_Filtros(t *testing.T) {
	f := newFixture(t)
	f.move(t, entity.EventInbound, "w1", "v1", 4, nil)
	f.move(t, entity.EventInbound, "w1", "v2", 5, nil)
	f.move(t, entity.EventInbound, "w1", "vSoon", 6, nil)
	ctx := context.Background()

	cases := []struct {
		name   string
		filter entity.StockSnapshotFilter
		want   []string
	}{
		{"sku sin distinguir mayúsculas", entity.StockSnapshotFilter{SKU: "cam-"}, []string{"v2", "v1"}},
		{"marca", entity.StockSnapshotFilter{BrandID: "b1"}, []string{"v2", "v1"}},
		{"categoría", entity.StockSnapshotFilter{CategoryID: "cat2"}, []string{"vSoon"}},
		{"producto", entity.StockSnapshotFilter{ProductID: "p1"}, []string{"v2", "v1"}},
		{"variante", entity.StockSnapshotFilter{VariantID: "v1"}, []string{"v1"}},
		{"atributo", entity.StockSnapshotFilter{AttributeValueIDs: []string{"talla-s", "otra"}}, []string{"v1"}},
		{"bodega", entity.StockSnapshotFilter{WarehouseID: "w2"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.filter.CompanyID = company
			page, err := f.engine.Snapshot(ctx, admin, report.SnapshotQuery{Filter: tc.filter})
			require.NoError(t, err)
			var got []string
			for _, it := range page.Items {
				got = append(got, it.VariantID)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSnapshot_AccesoYValidaciones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Snapshot(ctx, seller, report.SnapshotQuery{Filter: entity.StockSnapshotFilter{CompanyID: company}})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.engine.Snapshot(ctx, seller, report.SnapshotQuery{Filter: entity.StockSnapshotFilter{CompanyID: company, WarehouseID: "w1"}})
	assert.NoError(t, err)

	_, err = f.engine.Snapshot(ctx, admin, report.SnapshotQuery{Filter: entity.StockSnapshotFilter{CompanyID: company, WarehouseID: "w9"}})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, domain.ReasonWarehouseNotFound, verr.Reason)

	_, err = f.engine.Snapshot(ctx, admin, report.SnapshotQuery{
		Filter:    entity.StockSnapshotFilter{CompanyID: company},
		PageQuery: report.PageQuery{Sort: []report.SortOrder{{Field: "precio"}}},
	})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, domain.ReasonInvalidSort, verr.Reason)
}

func TestSnapshot_OrdenMultiCampoYPaginacion(t *testing.T) {
	f := newFixture(t)
	f.move(t, entity.EventInbound, "w1", "v1", 5, nil)
	f.move(t, entity.EventInbound, "w2", "v1", 5, nil)
	f.move(t, entity.EventInbound, "w1", "v2", 1, nil)

	page, err := f.engine.Snapshot(context.Background(), admin, report.SnapshotQuery{
		Filter: entity.StockSnapshotFilter{CompanyID: company},
		PageQuery: report.PageQuery{
			Sort:   report.ParseSort([]string{"quantity,desc", "warehouseName,desc"}),
			Limit:  2,
			Offset: 1,
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "w1", page.Items[0].WarehouseID, "Sucursal antes que Principal en orden descendente")
	assert.Equal(t, "v2", page.Items[1].VariantID)
}

func TestSnapshot_AsOfReconstruyeDesdeElLibro(t *testing.T) {
	f := newFixture(t)
	f.move(t, entity.EventInbound, "w1", "v1", 10, day(2025, 5, 1))
	f.move(t, entity.EventOutbound, "w1", "v1", 3, day(2025, 5, 10))
	f.move(t, entity.EventInbound, "w1", "v1", 20, day(2025, 5, 20))

	asOf := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	page, err := f.engine.Snapshot(context.Background(), admin, report.SnapshotQuery{
		Filter: entity.StockSnapshotFilter{CompanyID: company, AsOf: &asOf},
	})

	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].Quantity.Equal(qtyOf(7)))
	assert.Equal(t, asOf, page.Items[0].AsOf)

	before := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	page, err = f.engine.Snapshot(context.Background(), admin, report.SnapshotQuery{
		Filter: entity.StockSnapshotFilter{CompanyID: company, AsOf: &before},
	})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

// ─── Bajo stock ─────────────────────────────────────────────────────────────

func TestLowStock_DeficitNegativo(t *testing.T) {
	f := newFixture(t)
	f.move(t, entity.EventInbound, "w1", "v1", 4, nil)
	f.move(t, entity.EventInbound, "w1", "v2", 15, nil)
	threshold := decimal.NewFromInt(10)

	page, err := f.engine.LowStock(context.Background(), admin, report.LowStockQuery{
		Filter:    entity.StockSnapshotFilter{CompanyID: company},
		Threshold: &threshold,
	})

	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "v1", page.Items[0].VariantID)
	assert.True(t, page.Items[0].Deficit.Equal(qtyOf(-6)))
	assert.True(t, page.Items[0].Threshold.Equal(threshold))
}

func TestLowStock_UmbralPorDefectoYOrden(t *testing.T) {
	f := newFixture(t)
	f.move(t, entity.EventInbound, "w1", "v1", 8, nil)
	f.move(t, entity.EventInbound, "w1", "v2", 1, nil)
	f.move(t, entity.EventInbound, "w1", "vSoon", 2, nil)
	f.move(t, entity.EventOutbound, "w1", "vSoon", 2, nil)

	page, err := f.engine.LowStock(context.Background(), admin, report.LowStockQuery{
		Filter: entity.StockSnapshotFilter{CompanyID: company},
	})

	require.NoError(t, err)
	require.Len(t, page.Items, 3, "los saldos en cero también están bajo el umbral")
	assert.Equal(t, "vSoon", page.Items[0].VariantID)
	assert.True(t, page.Items[0].Deficit.Equal(qtyOf(-10)))
	assert.Equal(t, "v2", page.Items[1].VariantID)
	assert.Equal(t, "v1", page.Items[2].VariantID)
}

func TestLowStock_UmbralInvalido(t *testing.T) {
	f := newFixture(t)
	zero := decimal.Zero
	_, err := f.engine.LowStock(context.Background(), admin, report.LowStockQuery{
		Filter:    entity.StockSnapshotFilter{CompanyID: company},
		Threshold: &zero,
	})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, domain.ReasonInvalidThreshold, verr.Reason)
}

// ─── Próximos a vencer ──────────────────────────────────────────────────────

func TestExpiringItems_Ventana(t *testing.T) {
	f := newFixture(t)
	f.move(t, entity.EventInbound, "w1", "vSoon", 3, nil)
	f.move(t, entity.EventInbound, "w1", "vPast", 2, day(2025, 5, 1))
	f.move(t, entity.EventInbound, "w1", "vLate", 1, nil)
	f.move(t, entity.EventInbound, "w1", "v1", 1, nil)
	ctx := context.Background()

	page, err := f.engine.ExpiringItems(ctx, admin, report.ExpiringQuery{Filter: entity.StockSnapshotFilter{CompanyID: company}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "vSoon", page.Items[0].VariantID)
	assert.Equal(t, 5, page.Items[0].DaysUntilExpiry)

	page, err = f.engine.ExpiringItems(ctx, admin, report.ExpiringQuery{
		Filter:         entity.StockSnapshotFilter{CompanyID: company},
		IncludeExpired: true,
		DaysAhead:      90,
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "vPast", page.Items[0].VariantID)
	assert.Equal(t, -3, page.Items[0].DaysUntilExpiry)
	assert.Equal(t, "vSoon", page.Items[1].VariantID)
	assert.Equal(t, "vLate", page.Items[2].VariantID)
	assert.Equal(t, 61, page.Items[2].DaysUntilExpiry)
}

func TestExpiringItems_FechaDeCorteExplicita(t *testing.T) {
	f := newFixture(t)
	f.move(t, entity.EventInbound, "w1", "vLate", 1, nil)

	asOf := time.Date(2025, 7, 20, 18, 30, 0, 0, time.UTC)
	page, err := f.engine.ExpiringItems(context.Background(), admin, report.ExpiringQuery{
		Filter: entity.StockSnapshotFilter{CompanyID: company},
		AsOf:   &asOf,
	})

	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 12, page.Items[0].DaysUntilExpiry)
	assert.Equal(t, *day(2025, 8, 1), page.Items[0].ExpiryDate)
}

// ─── Historial ──────────────────────────────────────────────────────────────

func TestHistory_SaldoCorridoDesdeSaldoPrevio(t *testing.T) {
	f := newFixture(t)
	f.move(t, entity.EventInbound, "w1", "v1", 10, day(2025, 5, 1))
	f.move(t, entity.EventOutbound, "w1", "v1", 4, day(2025, 5, 10))
	f.move(t, entity.EventInbound, "w1", "v1", 6, day(2025, 5, 12))
	f.move(t, entity.EventAdjustment, "w1", "v1", -1, day(2025, 5, 30))
	f.move(t, entity.EventInbound, "w1", "v2", 99, day(2025, 5, 11))

	page, err := f.engine.History(context.Background(), admin, report.HistoryQuery{
		Filter: entity.StockHistoryFilter{
			CompanyID: company,
			VariantID: "v1",
			From:      day(2025, 5, 5),
			To:        day(2025, 5, 20),
		},
	})

	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	first, second := page.Items[0], page.Items[1]
	assert.Equal(t, entity.EventOutbound, first.EventType)
	assert.True(t, first.BalanceBefore.Equal(qtyOf(10)))
	assert.True(t, first.QuantityChange.Equal(qtyOf(-4)))
	assert.True(t, first.BalanceAfter.Equal(qtyOf(6)))
	assert.True(t, second.BalanceBefore.Equal(qtyOf(6)))
	assert.True(t, second.BalanceAfter.Equal(qtyOf(12)))
	assert.Equal(t, "Principal", second.WarehouseName)
}

func TestHistory_OrdenDescendenteConservaSaldos(t *testing.T) {
	f := newFixture(t)
	f.move(t, entity.EventInbound, "w1", "v1", 10, day(2025, 5, 1))
	f.move(t, entity.EventOutbound, "w1", "v1", 4, day(2025, 5, 10))

	page, err := f.engine.History(context.Background(), admin, report.HistoryQuery{
		Filter:    entity.StockHistoryFilter{CompanyID: company, ProductID: "p1"},
		PageQuery: report.PageQuery{Sort: []report.SortOrder{{Field: "occurredAt", Desc: true}}},
	})

	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, entity.EventOutbound, page.Items[0].EventType)
	assert.True(t, page.Items[0].BalanceAfter.Equal(qtyOf(6)))
	assert.True(t, page.Items[1].BalanceBefore.IsZero())
}

func TestHistory_Validaciones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := []struct {
		name   string
		actor  entity.Actor
		filter entity.StockHistoryFilter
		sort   []report.SortOrder
		target error
		reason string
	}{
		{"sin variante ni producto", admin, entity.StockHistoryFilter{}, nil, domain.ErrInvalidInput, domain.ReasonMissingHistoryTarget},
		{"rango invertido", admin, entity.StockHistoryFilter{VariantID: "v1", From: day(2025, 5, 2), To: day(2025, 5, 1)}, nil, domain.ErrInvalidInput, domain.ReasonInvalidRange},
		{"orden no soportado", admin, entity.StockHistoryFilter{VariantID: "v1"}, []report.SortOrder{{Field: "quantity"}}, domain.ErrInvalidInput, domain.ReasonInvalidSort},
		{"vendedor sin bodega", seller, entity.StockHistoryFilter{VariantID: "v1"}, nil, domain.ErrForbidden, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.filter.CompanyID = company
			_, err := f.engine.History(ctx, tc.actor, report.HistoryQuery{Filter: tc.filter, PageQuery: report.PageQuery{Sort: tc.sort}})
			assert.ErrorIs(t, err, tc.target)
			if tc.reason != "" {
				var verr *domain.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, tc.reason, verr.Reason)
			}
		})
	}
}

package stock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger-api/internal/application/stock"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/infrastructure/memory"
)

const company = "c1"

var (
	admin   = entity.Actor{ID: "u-admin", Name: "Admin", Role: entity.RoleAdmin}
	manager = entity.Actor{ID: "u-manager", Name: "Gerente", Role: entity.RoleManager}
	seller  = entity.Actor{ID: "u-seller", Name: "Vendedor", Role: entity.RoleSeller}
	fixedAt = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
)

// ledger libro completo sobre el store en memoria.
type ledger struct {
	store     *memory.Store
	events    *stock.EventStore
	transfers *stock.TransferCoordinator
	metrics   *countingMetrics
}

// newLedger catálogo: bodegas w1, w2 activas y w3 inactiva; v1, v2 vigentes,
// v3 de un producto vencido, v4 inactiva.
func newLedger(t *testing.T) *ledger {
	t.Helper()
	store := memory.NewStore()
	cat := store.Catalog()
	cat.PutWarehouse(entity.Warehouse{ID: "w1", CompanyID: company, Name: "Principal", Active: true})
	cat.PutWarehouse(entity.Warehouse{ID: "w2", CompanyID: company, Name: "Sucursal", Active: true})
	cat.PutWarehouse(entity.Warehouse{ID: "w3", CompanyID: company, Name: "Cerrada", Active: false})
	expired := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cat.PutProduct(entity.Product{ID: "p1", CompanyID: company, Name: "Camiseta", Active: true})
	cat.PutProduct(entity.Product{ID: "p2", CompanyID: company, Name: "Yogur", Active: true, ExpiryDate: &expired})
	cat.PutVariant(entity.ProductVariant{ID: "v1", CompanyID: company, ProductID: "p1", SKU: "CAM-S", Active: true})
	cat.PutVariant(entity.ProductVariant{ID: "v2", CompanyID: company, ProductID: "p1", SKU: "CAM-M", Active: true})
	cat.PutVariant(entity.ProductVariant{ID: "v3", CompanyID: company, ProductID: "p2", SKU: "YOG-1", Active: true})
	cat.PutVariant(entity.ProductVariant{ID: "v4", CompanyID: company, ProductID: "p1", SKU: "CAM-XL", Active: false})

	metrics := &countingMetrics{}
	opts := []stock.Option{stock.WithMetrics(metrics), stock.WithClock(func() time.Time { return fixedAt })}
	projector := stock.NewBalanceProjector(stock.ProjectorConfig{MaxRetries: 3, BaseDelay: time.Millisecond}, opts...)
	guard := stock.NewIdempotencyGuard(opts...)
	events := stock.NewEventStore(store, store.Events(), cat, cat, projector, guard, opts...)
	transfers := stock.NewTransferCoordinator(store, store.Transfers(), cat, cat, events, guard, opts...)
	return &ledger{store: store, events: events, transfers: transfers, metrics: metrics}
}

func (l *ledger) balance(t *testing.T, warehouseID, variantID string) decimal.Decimal {
	t.Helper()
	items, err := l.store.Items().GetMany(context.Background(), company, warehouseID, []string{variantID})
	require.NoError(t, err)
	if it, ok := items[variantID]; ok {
		return it.Quantity
	}
	return decimal.Zero
}

func (l *ledger) eventCount(t *testing.T) int {
	t.Helper()
	_, total, err := l.store.Events().List(context.Background(), entity.StockEventFilter{CompanyID: company})
	require.NoError(t, err)
	return total
}

func (l *ledger) receive(t *testing.T, warehouseID, variantID string, qty int64) *entity.StockEvent {
	t.Helper()
	ev, err := l.events.Append(context.Background(), stock.AppendEventInput{
		CompanyID:   company,
		WarehouseID: warehouseID,
		Type:        entity.EventInbound,
		ReasonCode:  entity.ReasonPurchase,
		Lines:       []stock.LineInput{{VariantID: variantID, Quantity: decimal.NewFromInt(qty)}},
		Actor:       admin,
	})
	require.NoError(t, err)
	return ev
}

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

type countingMetrics struct {
	mu           sync.Mutex
	appended     map[string]int
	replays      int
	conflicts    int
	retries      int
	insufficient int
	transitions  map[string]int
}

func (m *countingMetrics) EventAppended(eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appended == nil {
		m.appended = make(map[string]int)
	}
	m.appended[eventType]++
}

func (m *countingMetrics) IdempotentReplay(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replays++
}

func (m *countingMetrics) IdempotencyConflict(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

func (m *countingMetrics) ContentionRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *countingMetrics) InsufficientStock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insufficient++
}

func (m *countingMetrics) TransferTransition(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transitions == nil {
		m.transitions = make(map[string]int)
	}
	m.transitions[status]++
}

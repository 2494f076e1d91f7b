package stock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger-api/internal/application/stock"
	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// ─── Append ─────────────────────────────────────────────────────────────────

func TestAppend_EntradaProyectaSaldo(t *testing.T) {
	l := newLedger(t)

	ev := l.receive(t, "w1", "v1", 12)

	assert.Equal(t, entity.EventInbound, ev.Type)
	assert.Equal(t, fixedAt, ev.OccurredAt)
	assert.NotEmpty(t, ev.IdempotencyKey, "sin clave del cliente se genera una interna")
	require.Len(t, ev.Lines, 1)
	assert.True(t, ev.Lines[0].Quantity.Equal(qty(12)))
	assert.True(t, l.balance(t, "w1", "v1").Equal(qty(12)))
	assert.Equal(t, 1, l.metrics.appended[string(entity.EventInbound)])
}

func TestAppend_SalidaInsuficienteNoAplicaNingunaLinea(t *testing.T) {
	l := newLedger(t)
	l.receive(t, "w1", "v1", 10)
	l.receive(t, "w1", "v2", 2)

	_, err := l.events.Append(context.Background(), stock.AppendEventInput{
		CompanyID:   company,
		WarehouseID: "w1",
		Type:        entity.EventOutbound,
		ReasonCode:  entity.ReasonSale,
		Lines: []stock.LineInput{
			{VariantID: "v1", Quantity: qty(4)},
			{VariantID: "v2", Quantity: qty(5)},
		},
		Actor: seller,
	})

	var insufficient *domain.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "v2", insufficient.VariantID)
	assert.True(t, insufficient.Available.Equal(qty(2)))
	assert.True(t, insufficient.Shortfall().Equal(qty(3)))
	assert.True(t, l.balance(t, "w1", "v1").Equal(qty(10)), "la línea válida tampoco se aplica")
	assert.True(t, l.balance(t, "w1", "v2").Equal(qty(2)))
	assert.Equal(t, 2, l.eventCount(t), "el evento rechazado no queda en el libro")
	assert.Equal(t, 1, l.metrics.insufficient)
}

func TestAppend_AjustePuedeDejarSaldoNegativo(t *testing.T) {
	l := newLedger(t)
	l.receive(t, "w1", "v1", 3)

	_, err := l.events.Append(context.Background(), stock.AppendEventInput{
		CompanyID:   company,
		WarehouseID: "w1",
		Type:        entity.EventAdjustment,
		ReasonCode:  entity.ReasonCountCorrection,
		Lines:       []stock.LineInput{{VariantID: "v1", Quantity: qty(-5)}},
		Actor:       manager,
	})

	require.NoError(t, err)
	assert.True(t, l.balance(t, "w1", "v1").Equal(qty(-2)))
}

func TestAppend_Validaciones(t *testing.T) {
	base := stock.AppendEventInput{
		CompanyID:   company,
		WarehouseID: "w1",
		Type:        entity.EventInbound,
		Lines:       []stock.LineInput{{VariantID: "v1", Quantity: qty(1)}},
		Actor:       admin,
	}
	cases := []struct {
		name   string
		mutate func(in *stock.AppendEventInput)
		reason string
	}{
		{"sin líneas", func(in *stock.AppendEventInput) { in.Lines = nil }, domain.ReasonEmptyLines},
		{"cantidad cero", func(in *stock.AppendEventInput) { in.Lines[0].Quantity = qty(0) }, domain.ReasonNonPositiveQuantity},
		{"cantidad negativa en entrada", func(in *stock.AppendEventInput) { in.Lines[0].Quantity = qty(-1) }, domain.ReasonNonPositiveQuantity},
		{"ajuste en cero", func(in *stock.AppendEventInput) {
			in.Type = entity.EventAdjustment
			in.Lines[0].Quantity = qty(0)
		}, domain.ReasonZeroQuantity},
		{"más de cuatro decimales", func(in *stock.AppendEventInput) {
			in.Lines[0].Quantity = decimal.RequireFromString("0.00001")
		}, domain.ReasonQuantityPrecision},
		{"ajuste con más de cuatro decimales", func(in *stock.AppendEventInput) {
			in.Type = entity.EventAdjustment
			in.Lines[0].Quantity = decimal.RequireFromString("-0.00015")
		}, domain.ReasonQuantityPrecision},
		{"cantidad fuera de rango", func(in *stock.AppendEventInput) {
			in.Lines[0].Quantity = decimal.New(1, 14)
		}, domain.ReasonQuantityOutOfRange},
		{"variante repetida", func(in *stock.AppendEventInput) {
			in.Lines = append(in.Lines, stock.LineInput{VariantID: "v1", Quantity: qty(2)})
		}, domain.ReasonDuplicateVariantLine},
		{"tipo desconocido", func(in *stock.AppendEventInput) { in.Type = "RETURN" }, domain.ReasonUnknownEventType},
		{"tipo reservado", func(in *stock.AppendEventInput) { in.Type = entity.EventTransferIn }, domain.ReasonReservedEventType},
		{"motivo desconocido", func(in *stock.AppendEventInput) { in.ReasonCode = "GIFT" }, domain.ReasonUnknownReasonCode},
		{"sin bodega", func(in *stock.AppendEventInput) { in.WarehouseID = "" }, domain.ReasonMissingWarehouse},
		{"bodega inexistente", func(in *stock.AppendEventInput) { in.WarehouseID = "w9" }, domain.ReasonWarehouseNotFound},
		{"variante inexistente", func(in *stock.AppendEventInput) { in.Lines[0].VariantID = "v9" }, domain.ReasonVariantNotFound},
		{"clave inválida", func(in *stock.AppendEventInput) { in.IdempotencyKey = "con espacio" }, domain.ReasonInvalidIdempotencyKey},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := newLedger(t)
			in := base
			in.Lines = append([]stock.LineInput(nil), base.Lines...)
			tc.mutate(&in)

			_, err := l.events.Append(context.Background(), in)

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr), "error: %v", err)
			assert.Equal(t, tc.reason, verr.Reason)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Equal(t, 0, l.eventCount(t))
		})
	}
}

func TestAppend_CuatroDecimalesYCerosFinalesSeAceptan(t *testing.T) {
	l := newLedger(t)

	_, err := l.events.Append(context.Background(), stock.AppendEventInput{
		CompanyID:   company,
		WarehouseID: "w1",
		Type:        entity.EventInbound,
		Lines: []stock.LineInput{
			{VariantID: "v1", Quantity: decimal.RequireFromString("0.0003")},
			{VariantID: "v2", Quantity: decimal.RequireFromString("1.500000")},
		},
		Actor: admin,
	})

	require.NoError(t, err)
	assert.True(t, l.balance(t, "w1", "v1").Equal(decimal.RequireFromString("0.0003")))
	assert.True(t, l.balance(t, "w1", "v2").Equal(decimal.RequireFromString("1.5")))
}

func TestAppend_ReferenciasInactivasOVencidas(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	in := func(warehouse, variant string, typ entity.StockEventType, reason entity.ReasonCode, q int64) stock.AppendEventInput {
		return stock.AppendEventInput{
			CompanyID:   company,
			WarehouseID: warehouse,
			Type:        typ,
			ReasonCode:  reason,
			Lines:       []stock.LineInput{{VariantID: variant, Quantity: qty(q)}},
			Actor:       admin,
		}
	}

	_, err := l.events.Append(ctx, in("w3", "v1", entity.EventInbound, "", 1))
	assert.ErrorIs(t, err, domain.ErrWarehouseInactive)

	_, err = l.events.Append(ctx, in("w1", "v4", entity.EventInbound, "", 1))
	assert.ErrorIs(t, err, domain.ErrVariantInactive)

	_, err = l.events.Append(ctx, in("w1", "v3", entity.EventInbound, "", 1))
	assert.ErrorIs(t, err, domain.ErrExpiredItemMovementBlocked)

	_, err = l.events.Append(ctx, in("w1", "v3", entity.EventAdjustment, entity.ReasonDamage, -1))
	assert.ErrorIs(t, err, domain.ErrExpiredItemMovementBlocked, "solo DISCARD_EXPIRED mueve vencidos")

	_, err = l.events.Append(ctx, in("w1", "v3", entity.EventAdjustment, entity.ReasonDiscardExpired, -1))
	assert.NoError(t, err)
	assert.Equal(t, 1, l.eventCount(t))
}

func TestAppend_VendedorSoloRegistraSalidas(t *testing.T) {
	l := newLedger(t)

	_, err := l.events.Append(context.Background(), stock.AppendEventInput{
		CompanyID:   company,
		WarehouseID: "w1",
		Type:        entity.EventInbound,
		Lines:       []stock.LineInput{{VariantID: "v1", Quantity: qty(1)}},
		Actor:       seller,
	})

	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, 0, l.eventCount(t))
}

func TestAppend_OccurredAtExplicitoSeNormalizaAUTC(t *testing.T) {
	l := newLedger(t)
	bogota := time.FixedZone("COT", -5*3600)
	at := time.Date(2025, 2, 1, 8, 0, 0, 0, bogota)

	ev, err := l.events.Append(context.Background(), stock.AppendEventInput{
		CompanyID:   company,
		WarehouseID: "w1",
		Type:        entity.EventInbound,
		OccurredAt:  &at,
		Lines:       []stock.LineInput{{VariantID: "v1", Quantity: qty(1)}},
		Actor:       admin,
	})

	require.NoError(t, err)
	assert.Equal(t, time.UTC, ev.OccurredAt.Location())
	assert.True(t, ev.OccurredAt.Equal(at))
	assert.Equal(t, fixedAt, ev.CreatedAt)
}

// ─── Idempotencia ───────────────────────────────────────────────────────────

func TestAppend_MismaClaveMismoPayloadDevuelveElOriginal(t *testing.T) {
	l := newLedger(t)
	in := stock.AppendEventInput{
		CompanyID:      company,
		WarehouseID:    "w1",
		Type:           entity.EventInbound,
		ReasonCode:     entity.ReasonPurchase,
		IdempotencyKey: "compra-001",
		Lines:          []stock.LineInput{{VariantID: "v1", Quantity: qty(5)}},
		Actor:          admin,
	}

	first, err := l.events.Append(context.Background(), in)
	require.NoError(t, err)
	second, err := l.events.Append(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "compra-001", second.IdempotencyKey)
	assert.True(t, l.balance(t, "w1", "v1").Equal(qty(5)), "un solo efecto en el libro")
	assert.Equal(t, 1, l.eventCount(t))
	assert.Equal(t, 1, l.metrics.replays)

	found, err := l.events.FindByIdempotencyKey(context.Background(), company, "compra-001")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestAppend_MismaClaveOtroPayloadEsConflicto(t *testing.T) {
	l := newLedger(t)
	in := stock.AppendEventInput{
		CompanyID:      company,
		WarehouseID:    "w1",
		Type:           entity.EventInbound,
		IdempotencyKey: "compra-002",
		Lines:          []stock.LineInput{{VariantID: "v1", Quantity: qty(5)}},
		Actor:          admin,
	}
	_, err := l.events.Append(context.Background(), in)
	require.NoError(t, err)

	in.Lines = []stock.LineInput{{VariantID: "v1", Quantity: qty(6)}}
	_, err = l.events.Append(context.Background(), in)

	var conflict *domain.IdempotencyConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "compra-002", conflict.Key)
	assert.True(t, l.balance(t, "w1", "v1").Equal(qty(5)))
	assert.Equal(t, 1, l.eventCount(t))
}

func TestAppend_ReintentoSinOccurredAtCoincideConElOriginal(t *testing.T) {
	l := newLedger(t)
	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	in := stock.AppendEventInput{
		CompanyID:      company,
		WarehouseID:    "w1",
		Type:           entity.EventInbound,
		IdempotencyKey: "compra-003",
		OccurredAt:     &at,
		Lines:          []stock.LineInput{{VariantID: "v1", Quantity: qty(5)}},
		Actor:          admin,
	}
	first, err := l.events.Append(context.Background(), in)
	require.NoError(t, err)

	in.OccurredAt = nil
	second, err := l.events.Append(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestAppend_ConcurrenciaConLaMismaClaveUnSoloEfecto(t *testing.T) {
	l := newLedger(t)
	in := stock.AppendEventInput{
		CompanyID:      company,
		WarehouseID:    "w1",
		Type:           entity.EventInbound,
		IdempotencyKey: "compra-concurrente",
		Lines:          []stock.LineInput{{VariantID: "v1", Quantity: qty(3)}},
		Actor:          admin,
	}

	const workers = 8
	ids := make(chan string, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			ev, err := l.events.Append(context.Background(), in)
			if err != nil {
				errs <- err
				return
			}
			ids <- ev.ID
		}()
	}

	seen := map[string]bool{}
	for i := 0; i < workers; i++ {
		select {
		case id := <-ids:
			seen[id] = true
		case err := <-errs:
			t.Fatalf("error inesperado: %v", err)
		}
	}
	assert.Len(t, seen, 1, "todas las respuestas devuelven el mismo evento")
	assert.True(t, l.balance(t, "w1", "v1").Equal(qty(3)))
	assert.Equal(t, 1, l.eventCount(t))
}

// ─── Lecturas ───────────────────────────────────────────────────────────────

func TestFindByID_NoExiste(t *testing.T) {
	l := newLedger(t)
	_, err := l.events.FindByID(context.Background(), company, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ev := l.receive(t, "w1", "v1", 1)
	_, err = l.events.FindByID(context.Background(), "otra-empresa", ev.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "no se cruzan empresas")
}

func TestRead_SellerAcotadoALaBodegaDelEvento(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	ev := l.receive(t, "w1", "v1", 1)

	_, err := l.events.Read(ctx, seller, company, "", ev.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = l.events.Read(ctx, seller, company, "w2", ev.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := l.events.Read(ctx, seller, company, "w1", ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.ID)

	_, err = l.events.Read(ctx, manager, company, "", ev.ID)
	assert.NoError(t, err)
	_, err = l.events.Read(ctx, seller, company, "w1", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList_FiltraYPagina(t *testing.T) {
	l := newLedger(t)
	for i := 0; i < 3; i++ {
		l.receive(t, "w1", "v1", 1)
	}
	l.receive(t, "w2", "v2", 1)
	ctx := context.Background()

	list, total, err := l.events.List(ctx, admin, entity.StockEventFilter{CompanyID: company, WarehouseID: "w1", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, list, 2)

	list, total, err = l.events.List(ctx, admin, entity.StockEventFilter{CompanyID: company, VariantID: "v2"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "w2", list[0].WarehouseID)

	_, _, err = l.events.List(ctx, seller, entity.StockEventFilter{CompanyID: company})
	assert.ErrorIs(t, err, domain.ErrForbidden, "vendedor sin bodega")

	from, to := fixedAt, fixedAt.Add(-time.Hour)
	_, _, err = l.events.List(ctx, admin, entity.StockEventFilter{CompanyID: company, OccurredFrom: &from, OccurredTo: &to})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ─── Conservación ───────────────────────────────────────────────────────────

func TestConservacion_SaldoIgualSumaDeDeltas(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	steps := []struct {
		typ entity.StockEventType
		q   int64
	}{
		{entity.EventInbound, 10},
		{entity.EventOutbound, 3},
		{entity.EventAdjustment, -2},
		{entity.EventInbound, 7},
		{entity.EventOutbound, 20}, // rechazado
		{entity.EventAdjustment, 4},
	}
	for _, s := range steps {
		_, _ = l.events.Append(ctx, stock.AppendEventInput{
			CompanyID:   company,
			WarehouseID: "w1",
			Type:        s.typ,
			Lines:       []stock.LineInput{{VariantID: "v1", Quantity: qty(s.q)}},
			Actor:       admin,
		})
	}

	events, _, err := l.store.Events().List(ctx, entity.StockEventFilter{CompanyID: company})
	require.NoError(t, err)
	sum := qty(0)
	for _, ev := range events {
		for _, line := range ev.Lines {
			sum = sum.Add(line.Quantity)
		}
	}
	assert.True(t, sum.Equal(qty(16)))
	assert.True(t, l.balance(t, "w1", "v1").Equal(sum))
}

func TestConservacion_TodosLosSaldosCoincidenConElLibro(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	l.receive(t, "w1", "v1", 30)
	l.receive(t, "w1", "v2", 8)
	l.receive(t, "w2", "v2", 5)
	tr, err := l.transfers.CreateDraft(ctx, stock.CreateTransferInput{
		CompanyID:              company,
		OriginWarehouseID:      "w1",
		DestinationWarehouseID: "w2",
		Lines:                  []stock.LineInput{{VariantID: "v1", Quantity: qty(12)}, {VariantID: "v2", Quantity: qty(3)}},
		Actor:                  manager,
	})
	require.NoError(t, err)
	_, err = l.transfers.Confirm(ctx, company, tr.ID, "", manager)
	require.NoError(t, err)

	events, _, err := l.store.Events().List(ctx, entity.StockEventFilter{CompanyID: company, Limit: 100})
	require.NoError(t, err)
	fromLog := map[string]decimal.Decimal{}
	for _, ev := range events {
		for _, line := range ev.Lines {
			k := ev.WarehouseID + "/" + line.VariantID
			fromLog[k] = fromLog[k].Add(line.Quantity)
		}
	}

	items := l.store.Items().List(ctx, company)
	require.Len(t, items, len(fromLog))
	for _, it := range items {
		k := it.WarehouseID + "/" + it.VariantID
		assert.True(t, it.Quantity.Equal(fromLog[k]), "saldo %s: %s vs libro %s", k, it.Quantity, fromLog[k])
	}
	assert.True(t, l.balance(t, "w2", "v2").Equal(qty(8)))
}

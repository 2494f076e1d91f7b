package entity_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

func TestStockEventType_Delta(t *testing.T) {
	q := decimal.NewFromInt(7)
	cases := []struct {
		typ  entity.StockEventType
		in   decimal.Decimal
		want decimal.Decimal
	}{
		{entity.EventInbound, q, q},
		{entity.EventTransferIn, q, q},
		{entity.EventOutbound, q, q.Neg()},
		{entity.EventTransferOut, q, q.Neg()},
		{entity.EventAdjustment, q.Neg(), q.Neg()},
		{entity.EventAdjustment, q, q},
	}
	for _, tc := range cases {
		t.Run(string(tc.typ), func(t *testing.T) {
			assert.True(t, tc.typ.Delta(tc.in).Equal(tc.want), "delta de %s", tc.typ)
		})
	}
}

func TestStockEventType_Clasificacion(t *testing.T) {
	assert.True(t, entity.EventTransferOut.IsTransfer())
	assert.True(t, entity.EventTransferIn.IsTransfer())
	assert.False(t, entity.EventInbound.IsTransfer())
	assert.True(t, entity.EventAdjustment.AllowsNegativeBalance())
	assert.False(t, entity.EventOutbound.AllowsNegativeBalance())
	assert.False(t, entity.StockEventType("RETURN").Valid())
	assert.True(t, entity.ReasonCode("").Valid())
	assert.False(t, entity.ReasonCode("GIFT").Valid())
}

func TestStockTransfer_Transiciones(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tr := &entity.StockTransfer{ID: "t1", Status: entity.TransferDraft}
	assert.False(t, tr.Status.Terminal())
	tr.Confirm("out", "in", "u1", "k1", at)
	assert.Equal(t, entity.TransferConfirmed, tr.Status)
	assert.Equal(t, "out", tr.OutboundEventID)
	assert.Equal(t, "in", tr.InboundEventID)
	assert.True(t, tr.Status.Terminal())

	tr2 := &entity.StockTransfer{ID: "t2", Status: entity.TransferDraft}
	tr2.Cancel("u1", at)
	assert.Equal(t, entity.TransferCancelled, tr2.Status)
	assert.Empty(t, tr2.OutboundEventID)
	assert.Empty(t, tr2.InboundEventID)
}

func TestProduct_Expired(t *testing.T) {
	exp := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	p := &entity.Product{ExpiryDate: &exp}
	assert.False(t, p.Expired(time.Date(2024, 5, 10, 23, 0, 0, 0, time.UTC)), "el día de vencimiento aún es válido")
	assert.True(t, p.Expired(time.Date(2024, 5, 11, 0, 0, 1, 0, time.UTC)))
	assert.False(t, (&entity.Product{}).Expired(time.Now()))
}

func TestActor_Permisos(t *testing.T) {
	admin := entity.Actor{ID: "a", Role: entity.RoleAdmin}
	manager := entity.Actor{ID: "m", Role: entity.RoleManager}
	seller := entity.Actor{ID: "s", Role: entity.RoleSeller}
	nobody := entity.Actor{ID: "x"}

	assert.True(t, admin.CanAppend(entity.EventAdjustment))
	assert.True(t, manager.CanManageTransfers())
	assert.True(t, seller.CanAppend(entity.EventOutbound))
	assert.False(t, seller.CanAppend(entity.EventInbound))
	assert.False(t, seller.CanManageTransfers())
	assert.False(t, seller.CanRead(""))
	assert.True(t, seller.CanRead("w1"))
	assert.False(t, nobody.CanRead("w1"))
	assert.True(t, admin.CanRead(""))
}

func TestQuantityFits(t *testing.T) {
	cases := map[string]bool{
		"0.0003":            true,
		"-0.0002":           true,
		"1.500000":          true,
		"99999999999999.99": true,
		"0.00001":           false,
		"-0.00015":          false,
		"100000000000000":   false,
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, entity.QuantityFits(decimal.RequireFromString(in)))
		})
	}
}

package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

var _ repository.StockEventRepository = (*EventRepo)(nil)

// EventRepo eventos en memoria.
type EventRepo struct {
	view view
}

// Create agrega el evento; la clave de idempotencia es única por empresa.
func (r *EventRepo) Create(_ context.Context, event *entity.StockEvent) error {
	st, release := r.view()
	defer release()
	if _, ok := st.events[event.ID]; ok {
		return fmt.Errorf("insert stock event %s: %w", event.ID, domain.ErrConflict)
	}
	if event.IdempotencyKey != "" {
		k := idemKey{company: event.CompanyID, key: event.IdempotencyKey}
		if _, ok := st.eventKeys[k]; ok {
			return fmt.Errorf("insert stock event key %s: %w", event.IdempotencyKey, domain.ErrConflict)
		}
		st.eventKeys[k] = event.ID
	}
	st.events[event.ID] = copyEvent(event)
	st.order = append(st.order, event.ID)
	return nil
}

// GetByID devuelve nil, nil si no existe.
func (r *EventRepo) GetByID(_ context.Context, companyID, id string) (*entity.StockEvent, error) {
	st, release := r.view()
	defer release()
	ev, ok := st.events[id]
	if !ok || ev.CompanyID != companyID {
		return nil, nil
	}
	return copyEvent(ev), nil
}

// GetByIdempotencyKey devuelve nil, nil si no existe.
func (r *EventRepo) GetByIdempotencyKey(_ context.Context, companyID, key string) (*entity.StockEvent, error) {
	st, release := r.view()
	defer release()
	id, ok := st.eventKeys[idemKey{company: companyID, key: key}]
	if !ok {
		return nil, nil
	}
	return copyEvent(st.events[id]), nil
}

// List filtra y pagina, más recientes primero.
func (r *EventRepo) List(_ context.Context, f entity.StockEventFilter) ([]*entity.StockEvent, int, error) {
	st, release := r.view()
	defer release()
	var matched []*entity.StockEvent
	for _, id := range st.order {
		ev := st.events[id]
		if ev.CompanyID != f.CompanyID {
			continue
		}
		if f.Type != "" && ev.Type != f.Type {
			continue
		}
		if f.WarehouseID != "" && ev.WarehouseID != f.WarehouseID {
			continue
		}
		if f.ReasonCode != "" && ev.ReasonCode != f.ReasonCode {
			continue
		}
		if f.OccurredFrom != nil && ev.OccurredAt.Before(*f.OccurredFrom) {
			continue
		}
		if f.OccurredTo != nil && ev.OccurredAt.After(*f.OccurredTo) {
			continue
		}
		if f.VariantID != "" && !touchesVariant(ev, f.VariantID) {
			continue
		}
		matched = append(matched, ev)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.After(b.OccurredAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	total := len(matched)
	page := paginate(matched, f.Limit, f.Offset)
	out := make([]*entity.StockEvent, len(page))
	for i, ev := range page {
		out[i] = copyEvent(ev)
	}
	return out, total, nil
}

func touchesVariant(ev *entity.StockEvent, variantID string) bool {
	for _, l := range ev.Lines {
		if l.VariantID == variantID {
			return true
		}
	}
	return false
}

func copyEvent(ev *entity.StockEvent) *entity.StockEvent {
	c := *ev
	c.Lines = append([]entity.StockEventLine(nil), ev.Lines...)
	return &c
}

func paginate[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return nil
	}
	end := len(list)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return list[offset:end]
}

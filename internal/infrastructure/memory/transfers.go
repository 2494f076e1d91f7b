package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

var _ repository.StockTransferRepository = (*TransferRepo)(nil)

// TransferRepo transferencias en memoria.
type TransferRepo struct {
	view view
}

func (r *TransferRepo) Create(_ context.Context, t *entity.StockTransfer) error {
	st, release := r.view()
	defer release()
	if _, ok := st.transfers[t.ID]; ok {
		return fmt.Errorf("insert transfer %s: %w", t.ID, domain.ErrConflict)
	}
	st.transfers[t.ID] = copyTransfer(t)
	return nil
}

func (r *TransferRepo) GetByID(_ context.Context, companyID, id string) (*entity.StockTransfer, error) {
	st, release := r.view()
	defer release()
	t, ok := st.transfers[id]
	if !ok || t.CompanyID != companyID {
		return nil, nil
	}
	c := copyTransfer(&t)
	return &c, nil
}

// GetForUpdate equivale a GetByID: las transacciones en memoria ya son serializadas.
func (r *TransferRepo) GetForUpdate(ctx context.Context, companyID, id string) (*entity.StockTransfer, error) {
	return r.GetByID(ctx, companyID, id)
}

func (r *TransferRepo) UpdateStatus(_ context.Context, t *entity.StockTransfer, from entity.TransferStatus) (bool, error) {
	st, release := r.view()
	defer release()
	cur, ok := st.transfers[t.ID]
	if !ok || cur.CompanyID != t.CompanyID || cur.Status != from {
		return false, nil
	}
	st.transfers[t.ID] = copyTransfer(t)
	return true, nil
}

func (r *TransferRepo) List(_ context.Context, f entity.TransferFilter) ([]*entity.StockTransfer, int, error) {
	st, release := r.view()
	defer release()
	var matched []*entity.StockTransfer
	for _, t := range st.transfers {
		if t.CompanyID != f.CompanyID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.OriginWarehouseID != "" && t.OriginWarehouseID != f.OriginWarehouseID {
			continue
		}
		if f.DestinationWarehouseID != "" && t.DestinationWarehouseID != f.DestinationWarehouseID {
			continue
		}
		if f.OccurredFrom != nil && t.OccurredAt.Before(*f.OccurredFrom) {
			continue
		}
		if f.OccurredTo != nil && t.OccurredAt.After(*f.OccurredTo) {
			continue
		}
		c := copyTransfer(&t)
		matched = append(matched, &c)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return paginate(matched, f.Limit, f.Offset), len(matched), nil
}

func copyTransfer(t *entity.StockTransfer) entity.StockTransfer {
	c := *t
	c.Lines = append([]entity.StockTransferLine(nil), t.Lines...)
	return c
}

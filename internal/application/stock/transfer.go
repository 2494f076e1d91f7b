package stock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

// CreateTransferInput entrada para crear un borrador de transferencia.
type CreateTransferInput struct {
	CompanyID              string
	OriginWarehouseID      string
	DestinationWarehouseID string
	Lines                  []LineInput
	OccurredAt             *time.Time
	Notes                  string
	Actor                  entity.Actor
}

// TransferCoordinator ciclo DRAFT -> CONFIRMED | CANCELLED de transferencias entre bodegas.
// La confirmación produce un TRANSFER_OUT en origen y un TRANSFER_IN en destino
// en una sola transacción.
type TransferCoordinator struct {
	tx         TxRunner
	transfers  repository.StockTransferRepository
	warehouses repository.WarehouseRepository
	variants   repository.VariantRepository
	store      *EventStore
	guard      *IdempotencyGuard
	metrics    Metrics
	log        zerolog.Logger
	now        func() time.Time
}

// NewTransferCoordinator construye el coordinador. transfers se usa para lecturas fuera de transacción.
func NewTransferCoordinator(
	tx TxRunner,
	transfers repository.StockTransferRepository,
	warehouses repository.WarehouseRepository,
	variants repository.VariantRepository,
	store *EventStore,
	guard *IdempotencyGuard,
	opts ...Option,
) *TransferCoordinator {
	o := buildOptions(opts)
	return &TransferCoordinator{
		tx:         tx,
		transfers:  transfers,
		warehouses: warehouses,
		variants:   variants,
		store:      store,
		guard:      guard,
		metrics:    o.metrics,
		log:        o.log,
		now:        o.now,
	}
}

// CreateDraft valida y persiste un borrador. Un borrador no tiene efecto sobre el stock.
func (c *TransferCoordinator) CreateDraft(ctx context.Context, in CreateTransferInput) (*entity.StockTransfer, error) {
	if !in.Actor.CanManageTransfers() {
		return nil, domain.ErrForbidden
	}
	if in.CompanyID == "" {
		return nil, domain.NewValidationError(domain.ReasonMissingCompany, "")
	}
	if in.OriginWarehouseID == "" || in.DestinationWarehouseID == "" {
		return nil, domain.NewValidationError(domain.ReasonMissingWarehouse, "")
	}
	if in.OriginWarehouseID == in.DestinationWarehouseID {
		return nil, domain.NewValidationError(domain.ReasonSameWarehouse, in.OriginWarehouseID)
	}
	// Mismas reglas que una salida: magnitudes positivas, sin variantes repetidas.
	deltas, err := resolveDeltas(entity.EventTransferIn, in.Lines)
	if err != nil {
		return nil, err
	}
	if err := checkWarehouse(ctx, c.warehouses, in.CompanyID, in.OriginWarehouseID); err != nil {
		return nil, err
	}
	if err := checkWarehouse(ctx, c.warehouses, in.CompanyID, in.DestinationWarehouseID); err != nil {
		return nil, err
	}
	now := c.now().UTC()
	occurredAt := now
	if in.OccurredAt != nil {
		occurredAt = in.OccurredAt.UTC()
	}
	if err := checkVariants(ctx, c.variants, in.CompanyID, variantIDs(deltas), entity.EventTransferOut, entity.ReasonTransfer, occurredAt); err != nil {
		return nil, err
	}

	t := &entity.StockTransfer{
		ID:                     uuid.NewString(),
		CompanyID:              in.CompanyID,
		OriginWarehouseID:      in.OriginWarehouseID,
		DestinationWarehouseID: in.DestinationWarehouseID,
		Status:                 entity.TransferDraft,
		OccurredAt:             occurredAt,
		Notes:                  in.Notes,
		CreatedBy:              in.Actor.ID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	for _, d := range deltas {
		t.Lines = append(t.Lines, entity.StockTransferLine{
			ID:         uuid.NewString(),
			TransferID: t.ID,
			VariantID:  d.VariantID,
			Quantity:   d.Delta,
		})
	}
	err = c.tx.Run(ctx, func(ctx context.Context, repos Repos) error {
		return repos.Transfers.Create(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	c.metrics.TransferTransition(string(entity.TransferDraft))
	c.log.Info().
		Str("company_id", t.CompanyID).
		Str("transfer_id", t.ID).
		Str("origin", t.OriginWarehouseID).
		Str("destination", t.DestinationWarehouseID).
		Msg("transferencia creada en borrador")
	return t, nil
}

// Confirm aplica la transferencia: TRANSFER_OUT en origen, TRANSFER_IN en destino,
// enlace de ambos eventos y estado CONFIRMED, todo o nada. Sin stock suficiente en
// origen la transferencia sigue en DRAFT y no se crea ningún evento.
// Repetir con la misma clave devuelve la transferencia confirmada.
func (c *TransferCoordinator) Confirm(ctx context.Context, companyID, transferID, idempotencyKey string, actor entity.Actor) (*entity.StockTransfer, error) {
	if !actor.CanManageTransfers() {
		return nil, domain.ErrForbidden
	}
	var (
		result   *entity.StockTransfer
		replayed bool
	)
	err := c.tx.Run(ctx, func(ctx context.Context, repos Repos) error {
		claim, err := c.guard.Begin(ctx, repos.Idempotency, companyID, entity.IdempotencyScopeTransferConfirm,
			idempotencyKey, TransferConfirmFingerprint(transferID))
		if err != nil {
			return err
		}
		if claim.Replay {
			t, err := repos.Transfers.GetByID(ctx, companyID, claim.ResultID)
			if err != nil {
				return err
			}
			if t == nil {
				return fmt.Errorf("transferencia %s: %w", claim.ResultID, domain.ErrNotFound)
			}
			result, replayed = t, true
			return nil
		}

		t, err := repos.Transfers.GetForUpdate(ctx, companyID, transferID)
		if err != nil {
			return err
		}
		if t == nil {
			return domain.ErrNotFound
		}
		if t.Status != entity.TransferDraft {
			return &domain.InvalidTransferStateError{TransferID: t.ID, Status: string(t.Status), Action: "confirm"}
		}
		if err := checkWarehouse(ctx, c.warehouses, companyID, t.OriginWarehouseID); err != nil {
			return err
		}
		if err := checkWarehouse(ctx, c.warehouses, companyID, t.DestinationWarehouseID); err != nil {
			return err
		}

		out, in := transferDrafts(t, actor.ID)
		if err := checkVariants(ctx, c.variants, companyID, variantIDs(out.deltas), out.typ, out.reason, out.occurredAt); err != nil {
			return err
		}
		if err := lockTransferRows(ctx, repos.Items, companyID, t.OriginWarehouseID, t.DestinationWarehouseID, variantIDs(out.deltas)); err != nil {
			return err
		}
		outEvent, err := c.store.appendInTx(ctx, repos, out)
		if err != nil {
			return err
		}
		inEvent, err := c.store.appendInTx(ctx, repos, in)
		if err != nil {
			return err
		}

		t.Confirm(outEvent.ID, inEvent.ID, actor.ID, claim.Key, c.now().UTC())
		ok, err := repos.Transfers.UpdateStatus(ctx, t, entity.TransferDraft)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.InvalidTransferStateError{TransferID: t.ID, Status: "unknown", Action: "confirm"}
		}
		result = t
		return c.guard.Complete(ctx, repos.Idempotency, companyID, entity.IdempotencyScopeTransferConfirm, claim, t.ID)
	})
	if err != nil {
		return nil, err
	}
	if !replayed {
		c.metrics.EventAppended(string(entity.EventTransferOut))
		c.metrics.EventAppended(string(entity.EventTransferIn))
		c.metrics.TransferTransition(string(entity.TransferConfirmed))
		c.log.Info().
			Str("company_id", companyID).
			Str("transfer_id", result.ID).
			Str("outbound_event_id", result.OutboundEventID).
			Str("inbound_event_id", result.InboundEventID).
			Msg("transferencia confirmada")
	}
	return result, nil
}

// Cancel solo es válido desde DRAFT; no hay compensación porque no se tocó stock.
func (c *TransferCoordinator) Cancel(ctx context.Context, companyID, transferID string, actor entity.Actor) (*entity.StockTransfer, error) {
	if !actor.CanManageTransfers() {
		return nil, domain.ErrForbidden
	}
	var result *entity.StockTransfer
	err := c.tx.Run(ctx, func(ctx context.Context, repos Repos) error {
		t, err := repos.Transfers.GetForUpdate(ctx, companyID, transferID)
		if err != nil {
			return err
		}
		if t == nil {
			return domain.ErrNotFound
		}
		if t.Status != entity.TransferDraft {
			return &domain.InvalidTransferStateError{TransferID: t.ID, Status: string(t.Status), Action: "cancel"}
		}
		t.Cancel(actor.ID, c.now().UTC())
		ok, err := repos.Transfers.UpdateStatus(ctx, t, entity.TransferDraft)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.InvalidTransferStateError{TransferID: t.ID, Status: "unknown", Action: "cancel"}
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.metrics.TransferTransition(string(entity.TransferCancelled))
	c.log.Info().
		Str("company_id", companyID).
		Str("transfer_id", result.ID).
		Msg("transferencia cancelada")
	return result, nil
}

// Get devuelve la transferencia con sus líneas o domain.ErrNotFound.
func (c *TransferCoordinator) Get(ctx context.Context, companyID, transferID string) (*entity.StockTransfer, error) {
	t, err := c.transfers.GetByID(ctx, companyID, transferID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

// Read Get con el alcance de lectura del actor: SELLER solo ve transferencias cuyo
// origen o destino es la bodega scope.
func (c *TransferCoordinator) Read(ctx context.Context, actor entity.Actor, companyID, scope, transferID string) (*entity.StockTransfer, error) {
	if !actor.CanRead(scope) {
		return nil, domain.ErrForbidden
	}
	t, err := c.Get(ctx, companyID, transferID)
	if err != nil {
		return nil, err
	}
	if !actor.CanReadRecord(scope, t.OriginWarehouseID, t.DestinationWarehouseID) {
		return nil, domain.ErrForbidden
	}
	return t, nil
}

// List lista transferencias de la empresa, más recientes primero.
func (c *TransferCoordinator) List(ctx context.Context, actor entity.Actor, filter entity.TransferFilter) ([]*entity.StockTransfer, int, error) {
	scope := filter.OriginWarehouseID
	if scope == "" {
		scope = filter.DestinationWarehouseID
	}
	if !actor.CanRead(scope) {
		return nil, 0, domain.ErrForbidden
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, domain.NewValidationError(domain.ReasonUnknownStatus, string(filter.Status))
	}
	if filter.OccurredFrom != nil && filter.OccurredTo != nil && filter.OccurredFrom.After(*filter.OccurredTo) {
		return nil, 0, domain.NewValidationError(domain.ReasonInvalidRange, "")
	}
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)
	return c.transfers.List(ctx, filter)
}

// transferDrafts construye los dos eventos de la confirmación con la hora de negocio de la transferencia.
func transferDrafts(t *entity.StockTransfer, actorID string) (out, in eventDraft) {
	outDeltas := make([]entity.LineDelta, len(t.Lines))
	inDeltas := make([]entity.LineDelta, len(t.Lines))
	for i, l := range t.Lines {
		outDeltas[i] = entity.LineDelta{VariantID: l.VariantID, Delta: entity.EventTransferOut.Delta(l.Quantity)}
		inDeltas[i] = entity.LineDelta{VariantID: l.VariantID, Delta: entity.EventTransferIn.Delta(l.Quantity)}
	}
	base := eventDraft{
		companyID:  t.CompanyID,
		reason:     entity.ReasonTransfer,
		notes:      t.Notes,
		occurredAt: t.OccurredAt,
		createdBy:  actorID,
		transferID: t.ID,
	}
	out, in = base, base
	out.typ, out.warehouseID, out.deltas = entity.EventTransferOut, t.OriginWarehouseID, outDeltas
	in.typ, in.warehouseID, in.deltas = entity.EventTransferIn, t.DestinationWarehouseID, inDeltas
	return out, in
}

// lockTransferRows bloquea los saldos de ambas bodegas en orden (bodega, variante), el mismo
// orden en que escribe un evento de una sola bodega. Así dos confirmaciones en sentidos
// opuestos esperan una por la otra en vez de interbloquearse.
func lockTransferRows(ctx context.Context, items repository.StockItemRepository, companyID, origin, destination string, ids []string) error {
	ids = append([]string(nil), ids...)
	sort.Strings(ids)
	warehouses := []string{origin, destination}
	sort.Strings(warehouses)
	for _, w := range warehouses {
		if err := items.Lock(ctx, companyID, w, ids); err != nil {
			return err
		}
	}
	return nil
}

func variantIDs(deltas []entity.LineDelta) []string {
	ids := make([]string, len(deltas))
	for i, d := range deltas {
		ids[i] = d.VariantID
	}
	return ids
}

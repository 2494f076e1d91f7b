package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

// LineInput línea de entrada. Para INBOUND/OUTBOUND la cantidad es magnitud positiva;
// para ADJUSTMENT es el delta firmado (distinto de cero).
type LineInput struct {
	VariantID string
	Quantity  decimal.Decimal
}

// AppendEventInput entrada para registrar un evento de stock.
type AppendEventInput struct {
	CompanyID      string
	WarehouseID    string
	Type           entity.StockEventType
	ReasonCode     entity.ReasonCode
	Notes          string
	OccurredAt     *time.Time
	IdempotencyKey string
	Lines          []LineInput
	Actor          entity.Actor
}

type eventDraft struct {
	companyID      string
	warehouseID    string
	typ            entity.StockEventType
	reason         entity.ReasonCode
	notes          string
	occurredAt     time.Time
	createdBy      string
	idempotencyKey string
	transferID     string
	deltas         []entity.LineDelta
}

// EventStore libro append-only de eventos de stock. Cada append proyecta los saldos
// en la misma transacción.
type EventStore struct {
	tx         TxRunner
	events     repository.StockEventRepository
	warehouses repository.WarehouseRepository
	variants   repository.VariantRepository
	projector  *BalanceProjector
	guard      *IdempotencyGuard
	metrics    Metrics
	log        zerolog.Logger
	now        func() time.Time
}

// NewEventStore construye el libro. events se usa para lecturas fuera de transacción.
func NewEventStore(
	tx TxRunner,
	events repository.StockEventRepository,
	warehouses repository.WarehouseRepository,
	variants repository.VariantRepository,
	projector *BalanceProjector,
	guard *IdempotencyGuard,
	opts ...Option,
) *EventStore {
	o := buildOptions(opts)
	return &EventStore{
		tx:         tx,
		events:     events,
		warehouses: warehouses,
		variants:   variants,
		projector:  projector,
		guard:      guard,
		metrics:    o.metrics,
		log:        o.log,
		now:        o.now,
	}
}

// Append registra un evento público (INBOUND, OUTBOUND o ADJUSTMENT).
// Un reintento con la misma clave y el mismo payload devuelve el evento original sin nuevo efecto.
func (s *EventStore) Append(ctx context.Context, in AppendEventInput) (*entity.StockEvent, error) {
	if in.Type.IsTransfer() {
		return nil, domain.NewValidationError(domain.ReasonReservedEventType, string(in.Type))
	}
	if !in.Actor.CanAppend(in.Type) {
		return nil, domain.ErrForbidden
	}
	draft, err := s.buildDraft(in)
	if err != nil {
		return nil, err
	}
	fingerprint := EventFingerprint(draft.typ, draft.warehouseID, draft.reason, draft.notes, draft.deltas)

	var (
		result   *entity.StockEvent
		replayed bool
	)
	err = s.tx.Run(ctx, func(ctx context.Context, repos Repos) error {
		claim, err := s.guard.Begin(ctx, repos.Idempotency, draft.companyID, entity.IdempotencyScopeStockEvent, in.IdempotencyKey, fingerprint)
		if err != nil {
			return err
		}
		if claim.Replay {
			ev, err := repos.Events.GetByID(ctx, draft.companyID, claim.ResultID)
			if err != nil {
				return err
			}
			if ev == nil {
				return fmt.Errorf("evento %s de la clave %s: %w", claim.ResultID, claim.Key, domain.ErrNotFound)
			}
			result, replayed = ev, true
			return nil
		}
		if err := s.checkReferences(ctx, draft); err != nil {
			return err
		}
		draft.idempotencyKey = claim.Key
		ev, err := s.appendInTx(ctx, repos, draft)
		if err != nil {
			return err
		}
		result = ev
		return s.guard.Complete(ctx, repos.Idempotency, draft.companyID, entity.IdempotencyScopeStockEvent, claim, ev.ID)
	})
	if err != nil {
		return nil, err
	}
	if !replayed {
		s.metrics.EventAppended(string(result.Type))
		s.log.Info().
			Str("company_id", result.CompanyID).
			Str("warehouse_id", result.WarehouseID).
			Str("event_id", result.ID).
			Str("type", string(result.Type)).
			Int("lines", len(result.Lines)).
			Msg("evento de stock registrado")
	}
	return result, nil
}

// FindByID devuelve el evento o domain.ErrNotFound.
func (s *EventStore) FindByID(ctx context.Context, companyID, id string) (*entity.StockEvent, error) {
	ev, err := s.events.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, domain.ErrNotFound
	}
	return ev, nil
}

// Read FindByID con el alcance de lectura del actor; scope es la bodega desde la que consulta.
func (s *EventStore) Read(ctx context.Context, actor entity.Actor, companyID, scope, id string) (*entity.StockEvent, error) {
	if !actor.CanRead(scope) {
		return nil, domain.ErrForbidden
	}
	ev, err := s.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanReadRecord(scope, ev.WarehouseID) {
		return nil, domain.ErrForbidden
	}
	return ev, nil
}

// FindByIdempotencyKey devuelve el evento registrado con la clave o domain.ErrNotFound.
func (s *EventStore) FindByIdempotencyKey(ctx context.Context, companyID, key string) (*entity.StockEvent, error) {
	key, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, domain.ErrNotFound
	}
	ev, err := s.events.GetByIdempotencyKey(ctx, companyID, key)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, domain.ErrNotFound
	}
	return ev, nil
}

// List lista eventos de la empresa, más recientes primero.
func (s *EventStore) List(ctx context.Context, actor entity.Actor, filter entity.StockEventFilter) ([]*entity.StockEvent, int, error) {
	if !actor.CanRead(filter.WarehouseID) {
		return nil, 0, domain.ErrForbidden
	}
	if filter.OccurredFrom != nil && filter.OccurredTo != nil && filter.OccurredFrom.After(*filter.OccurredTo) {
		return nil, 0, domain.NewValidationError(domain.ReasonInvalidRange, "")
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, 0, domain.NewValidationError(domain.ReasonUnknownEventType, string(filter.Type))
	}
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)
	return s.events.List(ctx, filter)
}

// appendInTx crea el evento y proyecta sus deltas con los repositorios de la transacción.
// Es el único camino que crea TRANSFER_OUT/TRANSFER_IN, usado por el coordinador.
func (s *EventStore) appendInTx(ctx context.Context, repos Repos, d eventDraft) (*entity.StockEvent, error) {
	ev := &entity.StockEvent{
		ID:             uuid.NewString(),
		CompanyID:      d.companyID,
		Type:           d.typ,
		WarehouseID:    d.warehouseID,
		OccurredAt:     d.occurredAt,
		CreatedAt:      s.now().UTC(),
		ReasonCode:     d.reason,
		Notes:          d.notes,
		CreatedBy:      d.createdBy,
		IdempotencyKey: d.idempotencyKey,
		TransferID:     d.transferID,
		Lines:          make([]entity.StockEventLine, 0, len(d.deltas)),
	}
	for _, l := range d.deltas {
		ev.Lines = append(ev.Lines, entity.StockEventLine{
			ID:        uuid.NewString(),
			EventID:   ev.ID,
			VariantID: l.VariantID,
			Quantity:  l.Delta,
		})
	}
	if err := repos.Events.Create(ctx, ev); err != nil {
		return nil, err
	}
	if _, err := s.projector.ApplyDeltas(ctx, repos.Items, d.companyID, d.warehouseID, d.deltas, d.typ.AllowsNegativeBalance()); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *EventStore) buildDraft(in AppendEventInput) (eventDraft, error) {
	if in.CompanyID == "" {
		return eventDraft{}, domain.NewValidationError(domain.ReasonMissingCompany, "")
	}
	if in.WarehouseID == "" {
		return eventDraft{}, domain.NewValidationError(domain.ReasonMissingWarehouse, "")
	}
	if !in.Type.Valid() {
		return eventDraft{}, domain.NewValidationError(domain.ReasonUnknownEventType, string(in.Type))
	}
	if !in.ReasonCode.Valid() {
		return eventDraft{}, domain.NewValidationError(domain.ReasonUnknownReasonCode, string(in.ReasonCode))
	}
	deltas, err := resolveDeltas(in.Type, in.Lines)
	if err != nil {
		return eventDraft{}, err
	}
	occurredAt := s.now().UTC()
	if in.OccurredAt != nil {
		occurredAt = in.OccurredAt.UTC()
	}
	return eventDraft{
		companyID:   in.CompanyID,
		warehouseID: in.WarehouseID,
		typ:         in.Type,
		reason:      in.ReasonCode,
		notes:       in.Notes,
		occurredAt:  occurredAt,
		createdBy:   in.Actor.ID,
		deltas:      deltas,
	}, nil
}

// resolveDeltas valida las líneas y las convierte en deltas firmados según el tipo.
func resolveDeltas(typ entity.StockEventType, lines []LineInput) ([]entity.LineDelta, error) {
	if len(lines) == 0 {
		return nil, domain.NewValidationError(domain.ReasonEmptyLines, "")
	}
	seen := make(map[string]struct{}, len(lines))
	deltas := make([]entity.LineDelta, 0, len(lines))
	for i, l := range lines {
		if l.VariantID == "" {
			return nil, domain.NewValidationError(domain.ReasonMissingVariant, fmt.Sprintf("línea %d", i+1))
		}
		if _, dup := seen[l.VariantID]; dup {
			return nil, domain.NewValidationError(domain.ReasonDuplicateVariantLine, l.VariantID)
		}
		seen[l.VariantID] = struct{}{}
		if typ == entity.EventAdjustment {
			if l.Quantity.IsZero() {
				return nil, domain.NewValidationError(domain.ReasonZeroQuantity, l.VariantID)
			}
		} else if !l.Quantity.IsPositive() {
			return nil, domain.NewValidationError(domain.ReasonNonPositiveQuantity, l.VariantID)
		}
		// línea y saldo deben persistirse sin redondeo o dejarían de sumar lo mismo
		if !l.Quantity.Equal(l.Quantity.Truncate(entity.QuantityScale)) {
			return nil, domain.NewValidationError(domain.ReasonQuantityPrecision, l.VariantID)
		}
		if !entity.QuantityFits(l.Quantity) {
			return nil, domain.NewValidationError(domain.ReasonQuantityOutOfRange, l.VariantID)
		}
		deltas = append(deltas, entity.LineDelta{VariantID: l.VariantID, Delta: typ.Delta(l.Quantity)})
	}
	return deltas, nil
}

// checkReferences valida bodega activa, variantes activas y vencimiento contra datos de referencia.
func (s *EventStore) checkReferences(ctx context.Context, d eventDraft) error {
	if err := checkWarehouse(ctx, s.warehouses, d.companyID, d.warehouseID); err != nil {
		return err
	}
	return checkVariants(ctx, s.variants, d.companyID, variantIDs(d.deltas), d.typ, d.reason, d.occurredAt)
}

func checkWarehouse(ctx context.Context, repo repository.WarehouseRepository, companyID, id string) error {
	wh, err := repo.GetByID(ctx, companyID, id)
	if err != nil {
		return err
	}
	if wh == nil {
		return domain.NewValidationError(domain.ReasonWarehouseNotFound, id)
	}
	if !wh.Active {
		return fmt.Errorf("bodega %s: %w", id, domain.ErrWarehouseInactive)
	}
	return nil
}

func checkVariants(
	ctx context.Context,
	repo repository.VariantRepository,
	companyID string,
	ids []string,
	typ entity.StockEventType,
	reason entity.ReasonCode,
	at time.Time,
) error {
	found, err := repo.GetByIDs(ctx, companyID, ids)
	if err != nil {
		return err
	}
	discard := typ == entity.EventAdjustment && reason == entity.ReasonDiscardExpired
	for _, id := range ids {
		v, ok := found[id]
		if !ok || v == nil {
			return domain.NewValidationError(domain.ReasonVariantNotFound, id)
		}
		if !v.Movable() {
			return fmt.Errorf("variante %s: %w", id, domain.ErrVariantInactive)
		}
		if !discard && v.Product.Expired(at) {
			return fmt.Errorf("variante %s: %w", id, domain.ErrExpiredItemMovementBlocked)
		}
	}
	return nil
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

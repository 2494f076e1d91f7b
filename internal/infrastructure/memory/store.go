// Package memory implementa los puertos del libro en memoria. Las transacciones se
// serializan y trabajan sobre una copia del estado que se publica solo al confirmar.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/stock-ledger-api/internal/application/stock"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

var _ stock.TxRunner = (*Store)(nil)

type itemKey struct {
	company   string
	warehouse string
	variant   string
}

type idemKey struct {
	company string
	scope   string
	key     string
}

type state struct {
	events    map[string]*entity.StockEvent
	order     []string
	eventKeys map[idemKey]string
	items     map[itemKey]entity.StockItem
	transfers map[string]entity.StockTransfer
	idem      map[idemKey]entity.IdempotencyRecord
}

func newState() *state {
	return &state{
		events:    make(map[string]*entity.StockEvent),
		eventKeys: make(map[idemKey]string),
		items:     make(map[itemKey]entity.StockItem),
		transfers: make(map[string]entity.StockTransfer),
		idem:      make(map[idemKey]entity.IdempotencyRecord),
	}
}

// clone copia los índices; los eventos son inmutables y se comparten.
func (s *state) clone() *state {
	c := &state{
		events:    make(map[string]*entity.StockEvent, len(s.events)),
		order:     append([]string(nil), s.order...),
		eventKeys: make(map[idemKey]string, len(s.eventKeys)),
		items:     make(map[itemKey]entity.StockItem, len(s.items)),
		transfers: make(map[string]entity.StockTransfer, len(s.transfers)),
		idem:      make(map[idemKey]entity.IdempotencyRecord, len(s.idem)),
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.eventKeys {
		c.eventKeys[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.transfers {
		c.transfers[k] = v
	}
	for k, v := range s.idem {
		c.idem[k] = v
	}
	return c
}

// view da acceso a un estado y devuelve la función que lo libera.
type view func() (*state, func())

// Store libro en memoria con su catálogo de referencia.
type Store struct {
	mu      sync.Mutex
	state   *state
	catalog *Catalog
}

// NewStore construye un store vacío.
func NewStore() *Store {
	return &Store{state: newState(), catalog: NewCatalog()}
}

// Catalog datos de referencia (bodegas, productos, variantes).
func (s *Store) Catalog() *Catalog { return s.catalog }

func (s *Store) committed() (*state, func()) {
	s.mu.Lock()
	return s.state, s.mu.Unlock
}

// Run ejecuta fn sobre una copia del estado; la publica solo si fn devuelve nil.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, repos stock.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	v := func() (*state, func()) { return work, func() {} }
	repos := stock.Repos{
		Events:      &EventRepo{view: v},
		Items:       &ItemRepo{view: v},
		Transfers:   &TransferRepo{view: v},
		Idempotency: &IdempotencyRepo{view: v},
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Events lecturas del libro fuera de transacción.
func (s *Store) Events() *EventRepo { return &EventRepo{view: s.committed} }

// Items saldos fuera de transacción.
func (s *Store) Items() *ItemRepo { return &ItemRepo{view: s.committed} }

// Transfers transferencias fuera de transacción.
func (s *Store) Transfers() *TransferRepo { return &TransferRepo{view: s.committed} }

// Reports consultas de reportes sobre el estado confirmado.
func (s *Store) Reports() *ReportRepo { return &ReportRepo{view: s.committed, catalog: s.catalog} }

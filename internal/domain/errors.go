package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias de infraestructura).
var (
	ErrNotFound                   = errors.New("recurso no encontrado")
	ErrInvalidInput               = errors.New("entrada inválida")
	ErrForbidden                  = errors.New("acceso denegado")
	ErrConflict                   = errors.New("conflicto con el estado actual")
	ErrInsufficientStock          = errors.New("stock insuficiente")
	ErrIdempotencyConflict        = errors.New("clave de idempotencia usada con otro payload")
	ErrIdempotencyInProgress      = errors.New("solicitud con la misma clave de idempotencia en curso")
	ErrInvalidTransferState       = errors.New("estado de transferencia inválido para la operación")
	ErrConcurrentModification     = errors.New("modificación concurrente del saldo")
	ErrWarehouseInactive          = errors.New("bodega inactiva")
	ErrVariantInactive            = errors.New("variante o producto inactivo")
	ErrExpiredItemMovementBlocked = errors.New("movimiento de producto vencido bloqueado")
)

// Motivos de ValidationError.
const (
	ReasonEmptyLines            = "empty-lines"
	ReasonNonPositiveQuantity   = "non-positive-quantity"
	ReasonZeroQuantity          = "zero-quantity"
	ReasonDuplicateVariantLine  = "duplicate-variant-line"
	ReasonSameWarehouse         = "same-origin-destination"
	ReasonUnknownEventType      = "unknown-event-type"
	ReasonReservedEventType     = "reserved-event-type"
	ReasonUnknownReasonCode     = "unknown-reason-code"
	ReasonMissingCompany        = "missing-company"
	ReasonMissingWarehouse      = "missing-warehouse"
	ReasonMissingVariant        = "missing-variant"
	ReasonWarehouseNotFound     = "warehouse-not-found"
	ReasonVariantNotFound       = "variant-not-found"
	ReasonInvalidIdempotencyKey = "invalid-idempotency-key"
	ReasonInvalidRange          = "invalid-range"
	ReasonInvalidThreshold      = "invalid-threshold"
	ReasonMissingHistoryTarget  = "missing-variant-or-product"
	ReasonInvalidSort           = "invalid-sort"
	ReasonUnknownStatus         = "unknown-status"
	ReasonQuantityPrecision     = "quantity-precision"
	ReasonQuantityOutOfRange    = "quantity-out-of-range"
)

// ValidationError entrada mal formada; se rechaza antes de persistir nada.
type ValidationError struct {
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return "validación: " + e.Reason
	}
	return fmt.Sprintf("validación: %s (%s)", e.Reason, e.Detail)
}

// Is permite errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// NewValidationError construye un ValidationError.
func NewValidationError(reason, detail string) *ValidationError {
	return &ValidationError{Reason: reason, Detail: detail}
}

// InsufficientStockError lleva el faltante de la primera línea que dejaría saldo negativo.
type InsufficientStockError struct {
	WarehouseID string
	VariantID   string
	Requested   decimal.Decimal
	Available   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente: bodega %s variante %s solicitado %s disponible %s",
		e.WarehouseID, e.VariantID, e.Requested.String(), e.Available.String())
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Shortfall cantidad que falta para cubrir lo solicitado.
func (e *InsufficientStockError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

// IdempotencyConflictError misma clave, distinto fingerprint.
type IdempotencyConflictError struct {
	Scope string
	Key   string
}

func (e *IdempotencyConflictError) Error() string {
	return fmt.Sprintf("clave de idempotencia %q (%s) ya usada con otro payload", e.Key, e.Scope)
}

func (e *IdempotencyConflictError) Is(target error) bool { return target == ErrIdempotencyConflict }

// InvalidTransferStateError transición pedida desde un estado que no la permite.
type InvalidTransferStateError struct {
	TransferID string
	Status     string
	Action     string
}

func (e *InvalidTransferStateError) Error() string {
	return fmt.Sprintf("transferencia %s en estado %s no admite %s", e.TransferID, e.Status, e.Action)
}

func (e *InvalidTransferStateError) Is(target error) bool { return target == ErrInvalidTransferState }

// ConcurrentModificationError contención agotada sobre un saldo (transitorio).
type ConcurrentModificationError struct {
	WarehouseID string
	VariantID   string
	Attempts    int
}

func (e *ConcurrentModificationError) Error() string {
	if e.VariantID == "" {
		return fmt.Sprintf("modificación concurrente: transacción abortada tras %d intentos", e.Attempts)
	}
	return fmt.Sprintf("modificación concurrente: bodega %s variante %s tras %d intentos",
		e.WarehouseID, e.VariantID, e.Attempts)
}

func (e *ConcurrentModificationError) Is(target error) bool { return target == ErrConcurrentModification }

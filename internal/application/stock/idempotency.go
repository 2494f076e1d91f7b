package stock

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

// MaxIdempotencyKeyLength longitud máxima aceptada para claves del cliente.
const MaxIdempotencyKeyLength = 255

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Claim resultado de IdempotencyGuard.Begin.
type Claim struct {
	Key       string
	Generated bool   // clave interna: no se registra ni deduplica
	Replay    bool   // ya se ejecutó con el mismo payload; usar ResultID
	ResultID  string // evento o transferencia producida por la ejecución original
}

// IdempotencyGuard deduplica escrituras reintentadas usando la clave del cliente.
// El reclamo se hace con el repositorio de la transacción que protege.
type IdempotencyGuard struct {
	metrics Metrics
	log     zerolog.Logger
	now     func() time.Time
	newKey  func() string
}

// NewIdempotencyGuard construye el guard.
func NewIdempotencyGuard(opts ...Option) *IdempotencyGuard {
	o := buildOptions(opts)
	return &IdempotencyGuard{metrics: o.metrics, log: o.log, now: o.now, newKey: o.newKey}
}

// NormalizeKey recorta espacios y valida formato y longitud. Vacío es válido (sin deduplicación).
// Devuelve una copia: la clave se persiste y el origen puede ser un buffer reutilizado.
func NormalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", nil
	}
	if len(key) > MaxIdempotencyKeyLength {
		return "", domain.NewValidationError(domain.ReasonInvalidIdempotencyKey, "longitud máxima 255")
	}
	if !keyPattern.MatchString(key) {
		return "", domain.NewValidationError(domain.ReasonInvalidIdempotencyKey, "caracteres permitidos: a-z A-Z 0-9 _ -")
	}
	return strings.Clone(key), nil
}

// Begin reclama key para el payload identificado por fingerprint.
// Sin clave genera una interna y procede. Con clave nueva la registra y procede.
// Con clave existente y mismo fingerprint devuelve Replay; con otro fingerprint
// devuelve *domain.IdempotencyConflictError.
func (g *IdempotencyGuard) Begin(
	ctx context.Context,
	repo repository.IdempotencyRepository,
	companyID, scope, key, fingerprint string,
) (Claim, error) {
	key, err := NormalizeKey(key)
	if err != nil {
		return Claim{}, err
	}
	if key == "" {
		return Claim{Key: g.newKey(), Generated: true}, nil
	}

	existing, claimed, err := repo.Claim(ctx, &entity.IdempotencyRecord{
		CompanyID:   companyID,
		Scope:       scope,
		Key:         key,
		Fingerprint: fingerprint,
		CreatedAt:   g.now().UTC(),
	})
	if err != nil {
		return Claim{}, err
	}
	if claimed {
		return Claim{Key: key}, nil
	}
	if existing.Fingerprint != fingerprint {
		g.metrics.IdempotencyConflict(scope)
		g.log.Info().
			Str("company_id", companyID).
			Str("scope", scope).
			Str("idempotency_key", key).
			Msg("clave de idempotencia reutilizada con otro payload")
		return Claim{}, &domain.IdempotencyConflictError{Scope: scope, Key: key}
	}
	if existing.ResultID == "" {
		return Claim{}, domain.ErrIdempotencyInProgress
	}
	g.metrics.IdempotentReplay(scope)
	g.log.Debug().
		Str("company_id", companyID).
		Str("scope", scope).
		Str("idempotency_key", key).
		Str("result_id", existing.ResultID).
		Msg("repetición idempotente")
	return Claim{Key: key, Replay: true, ResultID: existing.ResultID}, nil
}

// Complete asocia el resultado a la clave reclamada. No hace nada con claves internas.
func (g *IdempotencyGuard) Complete(
	ctx context.Context,
	repo repository.IdempotencyRepository,
	companyID, scope string,
	claim Claim,
	resultID string,
) error {
	if claim.Generated || claim.Replay {
		return nil
	}
	return repo.Complete(ctx, companyID, scope, claim.Key, resultID)
}

func newUUID() string { return uuid.NewString() }

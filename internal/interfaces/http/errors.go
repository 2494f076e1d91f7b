package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger-api/internal/application/dto"
	"github.com/jhoicas/stock-ledger-api/internal/domain"
)

// writeError traduce errores de dominio a status HTTP y dto.ErrorResponse.
func writeError(c *fiber.Ctx, log zerolog.Logger, err error) error {
	var (
		validation   *domain.ValidationError
		insufficient *domain.InsufficientStockError
		state        *domain.InvalidTransferStateError
		contention   *domain.ConcurrentModificationError
	)
	switch {
	case errors.As(err, &validation):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code: "VALIDATION", Message: validation.Error(),
			Details: fiber.Map{"reason": validation.Reason, "detail": validation.Detail},
		})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado al recurso"})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "recurso no encontrado"})
	case errors.As(err, &insufficient):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code: "INSUFFICIENT_STOCK", Message: "stock insuficiente",
			Details: fiber.Map{
				"warehouse_id": insufficient.WarehouseID,
				"variant_id":   insufficient.VariantID,
				"requested":    insufficient.Requested,
				"available":    insufficient.Available,
				"shortfall":    insufficient.Shortfall(),
			},
		})
	case errors.Is(err, domain.ErrIdempotencyConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "IDEMPOTENCY_CONFLICT", Message: err.Error()})
	case errors.Is(err, domain.ErrIdempotencyInProgress):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "IDEMPOTENCY_IN_PROGRESS", Message: err.Error()})
	case errors.As(err, &state):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code: "INVALID_TRANSFER_STATE", Message: state.Error(),
			Details: fiber.Map{"transfer_id": state.TransferID, "status": state.Status, "action": state.Action},
		})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	case errors.Is(err, domain.ErrWarehouseInactive):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "WAREHOUSE_INACTIVE", Message: err.Error()})
	case errors.Is(err, domain.ErrVariantInactive):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "VARIANT_INACTIVE", Message: err.Error()})
	case errors.Is(err, domain.ErrExpiredItemMovementBlocked):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "EXPIRED_ITEM_BLOCKED", Message: err.Error()})
	case errors.As(err, &contention):
		c.Set(fiber.HeaderRetryAfter, "1")
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Code: "CONCURRENT_MODIFICATION", Message: "saldo en contención, reintente",
			Details: fiber.Map{"warehouse_id": contention.WarehouseID, "variant_id": contention.VariantID, "attempts": contention.Attempts},
		})
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("error interno")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}

func badRequest(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: code, Message: message})
}

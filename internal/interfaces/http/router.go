package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger-api/internal/application/report"
	"github.com/jhoicas/stock-ledger-api/internal/application/stock"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Events    *stock.EventStore
	Transfers *stock.TransferCoordinator
	Reports   *report.Engine
	JWTSecret string
	Log       zerolog.Logger
	// Ping verifica el almacenamiento para /health; nil = siempre sano.
	Ping func(ctx context.Context) error
	// Metrics expone /metrics; nil = sin endpoint.
	Metrics fiber.Handler
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", healthHandler(deps.Ping))
	if deps.Metrics != nil {
		app.Get("/metrics", deps.Metrics)
	}

	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token con rol)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret),
		RequireRole(entity.RoleAdmin, entity.RoleManager, entity.RoleSeller))
	managers := RequireRole(entity.RoleAdmin, entity.RoleManager)

	stockHandler := NewStockHandler(deps.Events, deps.Transfers, deps.Log)

	// Libro de eventos (la autorización por tipo vive en el servicio)
	events := protected.Group("/stock/events")
	events.Post("/", stockHandler.AppendEvent)
	events.Get("/", stockHandler.ListEvents)
	events.Get("/:id", stockHandler.GetEvent)

	// Transferencias
	transfers := protected.Group("/stock/transfers")
	transfers.Post("/", managers, stockHandler.CreateTransfer)
	transfers.Get("/", stockHandler.ListTransfers)
	transfers.Get("/:id", stockHandler.GetTransfer)
	transfers.Post("/:id/confirm", managers, stockHandler.ConfirmTransfer)
	transfers.Post("/:id/cancel", managers, stockHandler.CancelTransfer)

	// Reportes
	reportHandler := NewReportHandler(deps.Reports, deps.Log)
	reports := protected.Group("/reports")
	reports.Get("/stock-snapshot", reportHandler.StockSnapshot)
	reports.Get("/stock-history", reportHandler.StockHistory)
	reports.Get("/low-stock", reportHandler.LowStock)
	reports.Get("/expiring-items", reportHandler.ExpiringItems)
}

func healthHandler(ping func(ctx context.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

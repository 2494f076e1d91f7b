package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger-api/internal/application/report"
	"github.com/jhoicas/stock-ledger-api/internal/application/stock"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
	"github.com/jhoicas/stock-ledger-api/internal/infrastructure/catalogfile"
	"github.com/jhoicas/stock-ledger-api/internal/infrastructure/memory"
	"github.com/jhoicas/stock-ledger-api/internal/infrastructure/metrics"
	"github.com/jhoicas/stock-ledger-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/stock-ledger-api/internal/interfaces/http"
	"github.com/jhoicas/stock-ledger-api/pkg/config"
	"github.com/jhoicas/stock-ledger-api/pkg/logger"
)

// storage repositorios del libro según LEDGER_STORAGE.
type storage struct {
	tx         stock.TxRunner
	events     repository.StockEventRepository
	transfers  repository.StockTransferRepository
	warehouses repository.WarehouseRepository
	variants   repository.VariantRepository
	reports    repository.StockReportRepository
	ping       func(ctx context.Context) error
	close      func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("storage", cfg.Ledger.Storage).
		Msg("iniciando aplicación")
	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET es obligatorio")
	}

	ctx := context.Background()
	var st storage
	switch cfg.Ledger.Storage {
	case config.StorageMemory:
		st, err = memoryStorage(ctx, cfg.Ledger)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.Ledger.CatalogFile).Msg("carga del catálogo")
		}
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
	default:
		st, err = postgresStorage(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
	}
	defer st.close()

	ledgerMetrics := metrics.NewLedger(prometheus.DefaultRegisterer)
	stockLog := log.Component("stock")
	common := []stock.Option{stock.WithMetrics(ledgerMetrics), stock.WithLogger(stockLog)}

	projector := stock.NewBalanceProjector(stock.ProjectorConfig{
		MaxRetries: cfg.Ledger.MaxRetries,
		BaseDelay:  cfg.Ledger.RetryBase(),
	}, common...)
	guard := stock.NewIdempotencyGuard(common...)
	events := stock.NewEventStore(st.tx, st.events, st.warehouses, st.variants, projector, guard, common...)
	transfers := stock.NewTransferCoordinator(st.tx, st.transfers, st.warehouses, st.variants, events, guard, common...)
	reports := report.NewEngine(st.reports, st.warehouses, report.Config{
		LowStockThreshold: decimal.NewFromInt(cfg.Ledger.LowStockThreshold),
		ExpiringDaysAhead: cfg.Ledger.ExpiringDaysAhead,
	}, report.WithLogger(log.Component("reports")))

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	app.Use(httpRouter.RequestLogger(log.Component("http"), "/health", "/metrics"))
	app.Use(ledgerMetrics.Middleware())

	httpRouter.Router(app, httpRouter.RouterDeps{
		Events:    events,
		Transfers: transfers,
		Reports:   reports,
		JWTSecret: cfg.JWT.Secret,
		Log:       log.Component("http"),
		Ping:      st.ping,
		Metrics:   adaptor.HTTPHandler(promhttp.Handler()),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

func postgresStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage, error) {
	pool, err := postgres.NewPool(ctx, cfg.DB, log.Component("postgres"))
	if err != nil {
		return storage{}, err
	}
	if cfg.Ledger.AutoMigrate {
		if err := postgres.Migrate(ctx, pool, log.Component("migrate")); err != nil {
			pool.Close()
			return storage{}, err
		}
	}
	return storage{
		tx:         postgres.NewTxRunner(pool, postgres.WithTxRetry(cfg.Ledger.MaxRetries, cfg.Ledger.RetryBase())),
		events:     postgres.NewStockEventRepository(pool),
		transfers:  postgres.NewStockTransferRepository(pool),
		warehouses: postgres.NewWarehouseRepository(pool),
		variants:   postgres.NewProductRepository(pool),
		reports:    postgres.NewReportRepository(pool),
		ping:       pool.Ping,
		close:      pool.Close,
	}, nil
}

func memoryStorage(ctx context.Context, cfg config.LedgerConfig) (storage, error) {
	store := memory.NewStore()
	if cfg.CatalogFile != "" {
		f, err := os.Open(cfg.CatalogFile)
		if err != nil {
			return storage{}, err
		}
		defer f.Close()
		cat, err := catalogfile.Parse(f, catalogfile.Options{CompanyID: cfg.CatalogCompanyID, Latin1: cfg.CatalogLatin1})
		if err != nil {
			return storage{}, err
		}
		if err := catalogfile.Apply(ctx, cat, catalogfile.MemorySink(store.Catalog())); err != nil {
			return storage{}, err
		}
	}
	return storage{
		tx:         store,
		events:     store.Events(),
		transfers:  store.Transfers(),
		warehouses: store.Catalog(),
		variants:   store.Catalog(),
		reports:    store.Reports(),
		close:      func() {},
	}, nil
}

// migrate aplica las migraciones embebidas del libro de stock sobre la base configurada
// (DATABASE_URL o DB_*). Es idempotente: las versiones aplicadas se registran en schema_migrations.
//
// Uso: go run ./cmd/migrate
package main

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger-api/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger-api/pkg/config"
	"github.com/jhoicas/stock-ledger-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "migrate"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB, log.Component("postgres"))
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, log.Zerolog()); err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}
	log.Info().Msg("migraciones al día")
}

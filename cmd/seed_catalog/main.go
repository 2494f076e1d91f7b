// seed_catalog carga datos de referencia (bodegas, marcas, categorías, productos y variantes)
// desde un CSV en PostgreSQL. Las filas existentes se actualizan por id.
//
// Uso: go run ./cmd/seed_catalog -company <id> [-latin1] [-comma ';'] catalogo.csv
// Formato del CSV: ver internal/infrastructure/catalogfile.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/jhoicas/stock-ledger-api/internal/infrastructure/catalogfile"
	"github.com/jhoicas/stock-ledger-api/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger-api/pkg/config"
	"github.com/jhoicas/stock-ledger-api/pkg/logger"
)

func main() {
	companyID := flag.String("company", "", "empresa dueña del catálogo")
	latin1 := flag.Bool("latin1", false, "archivo en ISO-8859-1")
	comma := flag.String("comma", ",", "separador de columnas")
	migrate := flag.Bool("migrate", false, "aplicar migraciones antes de cargar")
	flag.Parse()

	if flag.NArg() != 1 || *companyID == "" {
		fmt.Fprintln(os.Stderr, "uso: seed_catalog -company <id> [-latin1] [-comma ';'] catalogo.csv")
		os.Exit(2)
	}
	sep, size := utf8.DecodeRuneInString(*comma)
	if size == 0 || size != len(*comma) {
		fmt.Fprintf(os.Stderr, "separador inválido: %q\n", *comma)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "seed_catalog"})

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("abrir CSV")
	}
	defer f.Close()

	cat, err := catalogfile.Parse(f, catalogfile.Options{CompanyID: *companyID, Latin1: *latin1, Comma: sep})
	if err != nil {
		log.Fatal().Err(err).Msg("leer CSV")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB, log.Component("postgres"))
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if *migrate {
		if err := postgres.Migrate(ctx, pool, log.Component("migrate")); err != nil {
			log.Fatal().Err(err).Msg("migraciones")
		}
	}

	sink := catalogfile.PostgresSink(postgres.NewWarehouseRepository(pool), postgres.NewProductRepository(pool))
	if err := catalogfile.Apply(ctx, cat, sink); err != nil {
		log.Fatal().Err(err).Msg("cargar catálogo")
	}
	log.Info().
		Str("company_id", *companyID).
		Int("warehouses", len(cat.Warehouses)).
		Int("products", len(cat.Products)).
		Int("variants", len(cat.Variants)).
		Msg("catálogo cargado")
}

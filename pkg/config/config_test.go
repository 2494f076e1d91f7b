package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValoresPorDefectoDelLibro(t *testing.T) {
	t.Setenv("LEDGER_STORAGE", "memory")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Ledger.Storage)
	assert.Equal(t, 5, cfg.Ledger.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, cfg.Ledger.RetryBase())
	assert.Equal(t, int64(10), cfg.Ledger.LowStockThreshold)
	assert.Equal(t, 30, cfg.Ledger.ExpiringDaysAhead)
}

func TestLoad_VariablesDeEntorno(t *testing.T) {
	t.Setenv("LEDGER_STORAGE", "POSTGRES")
	t.Setenv("LEDGER_MAX_RETRIES", "2")
	t.Setenv("LEDGER_LOW_STOCK_THRESHOLD", "25")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.Ledger.Storage)
	assert.Equal(t, 2, cfg.Ledger.MaxRetries)
	assert.Equal(t, int64(25), cfg.Ledger.LowStockThreshold)
	assert.Equal(t, "0.0.0.0:9090", cfg.HTTP.Addr())
}

func TestLoad_AlmacenamientoDesconocido(t *testing.T) {
	t.Setenv("LEDGER_STORAGE", "redis")

	_, err := Load()

	assert.ErrorContains(t, err, "LEDGER_STORAGE")
}

func TestDBConfig_DSNEscapaPassword(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "ledger", Password: "p@ss:word", DBName: "stock", SSLMode: "disable"}
	assert.Equal(t, "postgres://ledger:p%40ss%3Aword@db:5432/stock?sslmode=disable", c.DSN())
	assert.Equal(t, c.DSN(), c.ConnectionString())
}

func TestLoad_CatalogoRequiereEmpresa(t *testing.T) {
	t.Setenv("LEDGER_STORAGE", "memory")
	t.Setenv("LEDGER_CATALOG_FILE", "catalogo.csv")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("LEDGER_CATALOG_COMPANY_ID", "c1")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "catalogo.csv", cfg.Ledger.CatalogFile)
	assert.False(t, cfg.Ledger.AutoMigrate)
}

func TestLoad_StorageInvalido(t *testing.T) {
	t.Setenv("LEDGER_STORAGE", "redis")

	_, err := Load()
	assert.Error(t, err)
}

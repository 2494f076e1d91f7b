package catalogfile

import (
	"context"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/infrastructure/memory"
	"github.com/jhoicas/stock-ledger-api/internal/infrastructure/postgres"
)

type memorySink struct {
	c *memory.Catalog
}

// MemorySink escribe en el catálogo en memoria.
func MemorySink(c *memory.Catalog) Sink {
	return memorySink{c: c}
}

func (s memorySink) UpsertWarehouse(_ context.Context, w *entity.Warehouse) error {
	s.c.PutWarehouse(*w)
	return nil
}

func (s memorySink) UpsertBrand(_ context.Context, b *entity.Brand) error {
	s.c.PutBrand(*b)
	return nil
}

func (s memorySink) UpsertCategory(_ context.Context, c *entity.Category) error {
	s.c.PutCategory(*c)
	return nil
}

func (s memorySink) UpsertProduct(_ context.Context, p *entity.Product) error {
	s.c.PutProduct(*p)
	return nil
}

func (s memorySink) UpsertVariant(_ context.Context, v *entity.ProductVariant) error {
	s.c.PutVariant(*v)
	return nil
}

type postgresSink struct {
	*postgres.ProductRepo
	warehouses *postgres.WarehouseRepo
}

// PostgresSink escribe con los repositorios de catálogo de PostgreSQL.
func PostgresSink(warehouses *postgres.WarehouseRepo, products *postgres.ProductRepo) Sink {
	return postgresSink{ProductRepo: products, warehouses: warehouses}
}

func (s postgresSink) UpsertWarehouse(ctx context.Context, w *entity.Warehouse) error {
	return s.warehouses.Upsert(ctx, w)
}

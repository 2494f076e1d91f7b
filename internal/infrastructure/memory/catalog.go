package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

var (
	_ repository.WarehouseRepository = (*Catalog)(nil)
	_ repository.VariantRepository   = (*Catalog)(nil)
)

// Catalog datos de referencia en memoria.
type Catalog struct {
	mu         sync.RWMutex
	warehouses map[string]entity.Warehouse
	brands     map[string]entity.Brand
	categories map[string]entity.Category
	products   map[string]entity.Product
	variants   map[string]entity.ProductVariant
}

// NewCatalog construye un catálogo vacío.
func NewCatalog() *Catalog {
	return &Catalog{
		warehouses: make(map[string]entity.Warehouse),
		brands:     make(map[string]entity.Brand),
		categories: make(map[string]entity.Category),
		products:   make(map[string]entity.Product),
		variants:   make(map[string]entity.ProductVariant),
	}
}

func (c *Catalog) PutWarehouse(w entity.Warehouse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warehouses[w.ID] = w
}

func (c *Catalog) PutBrand(b entity.Brand) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.brands[b.ID] = b
}

func (c *Catalog) PutCategory(cat entity.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories[cat.ID] = cat
}

func (c *Catalog) PutProduct(p entity.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *Catalog) PutVariant(v entity.ProductVariant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v.Product = nil
	c.variants[v.ID] = v
}

// GetByID bodega de la empresa o nil.
func (c *Catalog) GetByID(_ context.Context, companyID, id string) (*entity.Warehouse, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.warehouses[id]
	if !ok || w.CompanyID != companyID {
		return nil, nil
	}
	return &w, nil
}

// GetByIDs variantes de la empresa con su producto.
func (c *Catalog) GetByIDs(_ context.Context, companyID string, ids []string) (map[string]*entity.ProductVariant, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*entity.ProductVariant, len(ids))
	for _, id := range ids {
		if v, ok := c.variantLocked(companyID, id); ok {
			out[id] = v
		}
	}
	return out, nil
}

func (c *Catalog) variantLocked(companyID, id string) (*entity.ProductVariant, bool) {
	v, ok := c.variants[id]
	if !ok || v.CompanyID != companyID {
		return nil, false
	}
	p, ok := c.products[v.ProductID]
	if !ok {
		return nil, false
	}
	v.Product = &p
	v.AttributeValueIDs = append([]string(nil), v.AttributeValueIDs...)
	return &v, true
}

// row arma la fila desnormalizada de una variante; ok=false si no está en el catálogo.
func (c *Catalog) row(companyID, variantID, warehouseID string) (entity.StockSnapshotRow, *entity.ProductVariant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.variantLocked(companyID, variantID)
	if !ok {
		return entity.StockSnapshotRow{}, nil, false
	}
	row := entity.StockSnapshotRow{
		VariantID:   v.ID,
		SKU:         v.SKU,
		ProductID:   v.ProductID,
		ProductName: v.Product.Name,
		ExpiryDate:  v.Product.ExpiryDate,
	}
	if b, ok := c.brands[v.Product.BrandID]; ok {
		row.BrandID, row.BrandName = b.ID, b.Name
	}
	if cat, ok := c.categories[v.Product.CategoryID]; ok {
		row.CategoryID, row.CategoryName = cat.ID, cat.Name
	}
	if warehouseID != "" {
		w, ok := c.warehouses[warehouseID]
		if !ok {
			return entity.StockSnapshotRow{}, nil, false
		}
		row.WarehouseID, row.WarehouseName = w.ID, w.Name
	}
	return row, v, true
}

func (c *Catalog) warehouseName(id string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.warehouses[id].Name
}

// Package catalogfile carga datos de referencia (bodegas, marcas, categorías, productos
// y variantes) desde un CSV con encabezado.
//
// Columnas reconocidas (el orden es libre, las ausentes quedan vacías):
//
//	kind,id,name,active,brand_id,category_id,product_id,sku,expiry_date,attribute_value_ids
//
// kind es warehouse | brand | category | product | variant. attribute_value_ids se separa con "|".
package catalogfile

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

const (
	KindWarehouse = "warehouse"
	KindBrand     = "brand"
	KindCategory  = "category"
	KindProduct   = "product"
	KindVariant   = "variant"
)

// Catalog registros leídos, agrupados por tipo en orden de aparición.
type Catalog struct {
	Warehouses []entity.Warehouse
	Brands     []entity.Brand
	Categories []entity.Category
	Products   []entity.Product
	Variants   []entity.ProductVariant
}

// Len total de registros.
func (c *Catalog) Len() int {
	return len(c.Warehouses) + len(c.Brands) + len(c.Categories) + len(c.Products) + len(c.Variants)
}

// Options lectura del archivo.
type Options struct {
	CompanyID string
	Latin1    bool // archivo exportado en ISO-8859-1 (Excel)
	Comma     rune // por defecto ','
}

// Sink destino de los registros.
type Sink interface {
	UpsertWarehouse(ctx context.Context, w *entity.Warehouse) error
	UpsertBrand(ctx context.Context, b *entity.Brand) error
	UpsertCategory(ctx context.Context, c *entity.Category) error
	UpsertProduct(ctx context.Context, p *entity.Product) error
	UpsertVariant(ctx context.Context, v *entity.ProductVariant) error
}

// Parse lee el CSV completo. Los errores indican la línea del archivo.
func Parse(r io.Reader, opts Options) (*Catalog, error) {
	if opts.CompanyID == "" {
		return nil, errors.New("catalogfile: company_id requerido")
	}
	if opts.Latin1 {
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && string(bom) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("catalogfile: encabezado: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"kind", "id"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("catalogfile: falta la columna %q", required)
		}
	}

	cat := &Catalog{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalogfile: %w", err)
		}
		line, _ := cr.FieldPos(0)
		row := record{cols: cols, values: rec}
		if err := cat.add(opts.CompanyID, row); err != nil {
			return nil, fmt.Errorf("catalogfile: línea %d: %w", line, err)
		}
	}
	return cat, nil
}

func (c *Catalog) add(companyID string, row record) error {
	kind := strings.ToLower(row.get("kind"))
	if kind == "" || strings.HasPrefix(kind, "#") {
		return nil
	}
	id := row.get("id")
	if id == "" {
		return errors.New("id vacío")
	}
	active, err := row.active()
	if err != nil {
		return err
	}
	switch kind {
	case KindWarehouse:
		c.Warehouses = append(c.Warehouses, entity.Warehouse{ID: id, CompanyID: companyID, Name: row.get("name"), Active: active})
	case KindBrand:
		c.Brands = append(c.Brands, entity.Brand{ID: id, CompanyID: companyID, Name: row.get("name")})
	case KindCategory:
		c.Categories = append(c.Categories, entity.Category{ID: id, CompanyID: companyID, Name: row.get("name")})
	case KindProduct:
		p := entity.Product{
			ID:         id,
			CompanyID:  companyID,
			Name:       row.get("name"),
			BrandID:    row.get("brand_id"),
			CategoryID: row.get("category_id"),
			Active:     active,
		}
		if raw := row.get("expiry_date"); raw != "" {
			d, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return fmt.Errorf("expiry_date %q: se espera YYYY-MM-DD", raw)
			}
			p.ExpiryDate = &d
		}
		c.Products = append(c.Products, p)
	case KindVariant:
		v := entity.ProductVariant{
			ID:        id,
			CompanyID: companyID,
			ProductID: row.get("product_id"),
			SKU:       row.get("sku"),
			Active:    active,
		}
		if v.ProductID == "" || v.SKU == "" {
			return fmt.Errorf("variante %s sin product_id o sku", id)
		}
		for _, a := range strings.Split(row.get("attribute_value_ids"), "|") {
			if a = strings.TrimSpace(a); a != "" {
				v.AttributeValueIDs = append(v.AttributeValueIDs, a)
			}
		}
		c.Variants = append(c.Variants, v)
	default:
		return fmt.Errorf("kind desconocido %q", kind)
	}
	return nil
}

// Apply escribe el catálogo en orden de dependencias: bodegas, marcas, categorías,
// productos y variantes.
func Apply(ctx context.Context, cat *Catalog, sink Sink) error {
	for i := range cat.Warehouses {
		if err := sink.UpsertWarehouse(ctx, &cat.Warehouses[i]); err != nil {
			return fmt.Errorf("bodega %s: %w", cat.Warehouses[i].ID, err)
		}
	}
	for i := range cat.Brands {
		if err := sink.UpsertBrand(ctx, &cat.Brands[i]); err != nil {
			return fmt.Errorf("marca %s: %w", cat.Brands[i].ID, err)
		}
	}
	for i := range cat.Categories {
		if err := sink.UpsertCategory(ctx, &cat.Categories[i]); err != nil {
			return fmt.Errorf("categoría %s: %w", cat.Categories[i].ID, err)
		}
	}
	for i := range cat.Products {
		if err := sink.UpsertProduct(ctx, &cat.Products[i]); err != nil {
			return fmt.Errorf("producto %s: %w", cat.Products[i].ID, err)
		}
	}
	for i := range cat.Variants {
		if err := sink.UpsertVariant(ctx, &cat.Variants[i]); err != nil {
			return fmt.Errorf("variante %s: %w", cat.Variants[i].ID, err)
		}
	}
	return nil
}

type record struct {
	cols   map[string]int
	values []string
}

func (r record) get(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[i])
}

// active vacío = true.
func (r record) active() (bool, error) {
	raw := r.get("active")
	if raw == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		return false, fmt.Errorf("active %q inválido", raw)
	}
	return b, nil
}

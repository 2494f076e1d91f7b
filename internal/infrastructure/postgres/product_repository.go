package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

var _ repository.VariantRepository = (*ProductRepo)(nil)

// ProductRepo catálogo de productos y variantes sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// GetByIDs obtiene las variantes de la empresa con su producto y atributos.
func (r *ProductRepo) GetByIDs(ctx context.Context, companyID string, ids []string) (map[string]*entity.ProductVariant, error) {
	out := make(map[string]*entity.ProductVariant, len(ids))
	valid := validUUIDs(ids)
	if len(valid) == 0 {
		return out, nil
	}
	query := `
		SELECT v.id, v.company_id, v.product_id, v.sku, v.active,
			COALESCE(array_agg(a.attribute_value_id::text) FILTER (WHERE a.attribute_value_id IS NOT NULL), '{}'),
			p.name, COALESCE(p.brand_id::text, ''), COALESCE(p.category_id::text, ''), p.active, p.expiry_date
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		LEFT JOIN variant_attribute_values a ON a.variant_id = v.id
		WHERE v.company_id = $1 AND v.id = ANY($2)
		GROUP BY v.id, p.id`
	rows, err := r.q.Query(ctx, query, companyID, valid)
	if err != nil {
		return nil, fmt.Errorf("get variants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			v entity.ProductVariant
			p entity.Product
		)
		err := rows.Scan(&v.ID, &v.CompanyID, &v.ProductID, &v.SKU, &v.Active, &v.AttributeValueIDs,
			&p.Name, &p.BrandID, &p.CategoryID, &p.Active, &p.ExpiryDate)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		p.ID = v.ProductID
		p.CompanyID = v.CompanyID
		if p.ExpiryDate != nil {
			d := entity.TruncateDay(*p.ExpiryDate)
			p.ExpiryDate = &d
		}
		v.Product = &p
		out[v.ID] = &v
	}
	return out, rows.Err()
}

// UpsertBrand crea o renombra una marca.
func (r *ProductRepo) UpsertBrand(ctx context.Context, b *entity.Brand) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO brands (id, company_id, name) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, b.ID, b.CompanyID, b.Name)
	if err != nil {
		return fmt.Errorf("upsert brand: %w", err)
	}
	return nil
}

// UpsertCategory crea o renombra una categoría.
func (r *ProductRepo) UpsertCategory(ctx context.Context, c *entity.Category) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO categories (id, company_id, name) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, c.ID, c.CompanyID, c.Name)
	if err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

// UpsertProduct crea o actualiza un producto.
func (r *ProductRepo) UpsertProduct(ctx context.Context, p *entity.Product) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO products (id, company_id, name, brand_id, category_id, active, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, brand_id = EXCLUDED.brand_id,
			category_id = EXCLUDED.category_id, active = EXCLUDED.active, expiry_date = EXCLUDED.expiry_date`,
		p.ID, p.CompanyID, p.Name, nullable(p.BrandID), nullable(p.CategoryID), p.Active, p.ExpiryDate)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// UpsertVariant crea o actualiza una variante y reemplaza sus atributos.
func (r *ProductRepo) UpsertVariant(ctx context.Context, v *entity.ProductVariant) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO product_variants (id, company_id, product_id, sku, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET sku = EXCLUDED.sku, active = EXCLUDED.active`,
		v.ID, v.CompanyID, v.ProductID, v.SKU, v.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("variant sku %s: %w", v.SKU, domain.ErrConflict)
		}
		return fmt.Errorf("upsert variant: %w", err)
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM variant_attribute_values WHERE variant_id = $1`, v.ID); err != nil {
		return fmt.Errorf("reset variant attributes: %w", err)
	}
	for _, attr := range v.AttributeValueIDs {
		if _, err := r.q.Exec(ctx, `
			INSERT INTO variant_attribute_values (variant_id, attribute_value_id) VALUES ($1, $2)`,
			v.ID, attr); err != nil {
			return fmt.Errorf("insert variant attribute: %w", err)
		}
	}
	return nil
}

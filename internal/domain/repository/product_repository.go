package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// VariantRepository consulta de variantes con su producto (datos de referencia).
type VariantRepository interface {
	// GetByIDs devuelve las variantes encontradas indexadas por ID, con Product cargado.
	GetByIDs(ctx context.Context, companyID string, ids []string) (map[string]*entity.ProductVariant, error)
}

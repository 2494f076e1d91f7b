package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger-api/internal/application/dto"
	"github.com/jhoicas/stock-ledger-api/internal/application/report"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// ReportHandler reportes de saldo e historial (protegido, solo lectura).
type ReportHandler struct {
	engine *report.Engine
	log    zerolog.Logger
}

// NewReportHandler construye el handler.
func NewReportHandler(engine *report.Engine, log zerolog.Logger) *ReportHandler {
	return &ReportHandler{engine: engine, log: log}
}

// snapshotFilter filtros comunes de los reportes de saldo.
func snapshotFilter(c *fiber.Ctx, companyID string) entity.StockSnapshotFilter {
	return entity.StockSnapshotFilter{
		CompanyID:         companyID,
		WarehouseID:       c.Query("warehouse_id"),
		ProductID:         c.Query("product_id"),
		CategoryID:        c.Query("category_id"),
		BrandID:           c.Query("brand_id"),
		VariantID:         c.Query("variant_id"),
		SKU:               c.Query("sku"),
		AttributeValueIDs: queryList(c, "attribute_value_ids"),
		IncludeZero:       c.QueryBool("include_zero", false),
		Aggregate:         c.QueryBool("aggregate", false),
	}
}

func pageQuery(c *fiber.Ctx) report.PageQuery {
	return report.PageQuery{
		Sort:   report.ParseSort(querySort(c)),
		Limit:  c.QueryInt("limit"),
		Offset: c.QueryInt("offset"),
	}
}

// StockSnapshot godoc
// @Summary      Saldo por variante y bodega, actual o a una fecha (as_of)
// @Tags         reports
// @Security     Bearer
// @Param        as_of      query  string  false  "RFC3339; reconstruye desde el libro"
// @Param        aggregate  query  bool    false  "Sumar todas las bodegas"
// @Param        sort       query  string  false  "campo,dir (repetible)"
// @Success      200  {object}  dto.ListResponse[dto.StockSnapshotDTO]
// @Router       /api/reports/stock-snapshot [get]
func (h *ReportHandler) StockSnapshot(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	asOf, ok := queryTime(c, "as_of")
	if !ok {
		return badRequest(c, "INVALID_QUERY", "as_of inválido")
	}
	filter := snapshotFilter(c, companyID)
	filter.AsOf = asOf
	page, err := h.engine.Snapshot(c.Context(), GetActor(c), report.SnapshotQuery{Filter: filter, PageQuery: pageQuery(c)})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ToSnapshotList(page))
}

// LowStock saldos por debajo del umbral (threshold opcional).
func (h *ReportHandler) LowStock(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	threshold, ok := queryDecimal(c, "threshold")
	if !ok {
		return badRequest(c, "INVALID_QUERY", "threshold inválido")
	}
	page, err := h.engine.LowStock(c.Context(), GetActor(c), report.LowStockQuery{
		Filter:    snapshotFilter(c, companyID),
		Threshold: threshold,
		PageQuery: pageQuery(c),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ToLowStockList(page))
}

// ExpiringItems saldos de productos que vencen dentro de days_ahead días.
func (h *ReportHandler) ExpiringItems(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	asOf, ok := queryTime(c, "as_of")
	if !ok {
		return badRequest(c, "INVALID_QUERY", "as_of inválido")
	}
	page, err := h.engine.ExpiringItems(c.Context(), GetActor(c), report.ExpiringQuery{
		Filter:         snapshotFilter(c, companyID),
		AsOf:           asOf,
		DaysAhead:      c.QueryInt("days_ahead"),
		IncludeExpired: c.QueryBool("include_expired", false),
		PageQuery:      pageQuery(c),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ToExpiringList(page))
}

// StockHistory godoc
// @Summary      Historial de movimientos con saldo corrido
// @Tags         reports
// @Security     Bearer
// @Param        variant_id  query  string  false  "Variante (o product_id)"
// @Param        product_id  query  string  false  "Producto (o variant_id)"
// @Param        from        query  string  false  "RFC3339 o YYYY-MM-DD, inclusivo"
// @Param        to          query  string  false  "RFC3339 o YYYY-MM-DD, inclusivo"
// @Success      200  {object}  dto.ListResponse[dto.StockHistoryDTO]
// @Router       /api/reports/stock-history [get]
func (h *ReportHandler) StockHistory(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	from, ok := queryTime(c, "from")
	if !ok {
		return badRequest(c, "INVALID_QUERY", "from inválido")
	}
	to, ok := queryTime(c, "to")
	if !ok {
		return badRequest(c, "INVALID_QUERY", "to inválido")
	}
	page, err := h.engine.History(c.Context(), GetActor(c), report.HistoryQuery{
		Filter: entity.StockHistoryFilter{
			CompanyID:         companyID,
			VariantID:         c.Query("variant_id"),
			ProductID:         c.Query("product_id"),
			WarehouseID:       c.Query("warehouse_id"),
			AttributeValueIDs: queryList(c, "attribute_value_ids"),
			From:              from,
			To:                to,
		},
		PageQuery: pageQuery(c),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ToHistoryList(page))
}

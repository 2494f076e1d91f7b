package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger-api/internal/application/dto"
	"github.com/jhoicas/stock-ledger-api/internal/application/stock"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// HeaderIdempotencyKey clave de idempotencia del cliente.
const HeaderIdempotencyKey = "Idempotency-Key"

// StockHandler maneja el libro de eventos y las transferencias (protegido).
type StockHandler struct {
	events    *stock.EventStore
	transfers *stock.TransferCoordinator
	log       zerolog.Logger
}

// NewStockHandler construye el handler.
func NewStockHandler(events *stock.EventStore, transfers *stock.TransferCoordinator, log zerolog.Logger) *StockHandler {
	return &StockHandler{events: events, transfers: transfers, log: log}
}

// header y param apuntan al buffer de fasthttp, que se reutiliza en la siguiente petición.
func header(c *fiber.Ctx, name string) string { return utils.CopyString(c.Get(name)) }

func param(c *fiber.Ctx, name string) string { return utils.CopyString(c.Params(name)) }

func toLineInputs(lines []dto.StockLineRequest) []stock.LineInput {
	out := make([]stock.LineInput, len(lines))
	for i, l := range lines {
		out[i] = stock.LineInput{VariantID: l.VariantID, Quantity: l.Quantity}
	}
	return out
}

// AppendEvent godoc
// @Summary      Registrar evento de stock (INBOUND, OUTBOUND, ADJUSTMENT)
// @Tags         stock
// @Security     Bearer
// @Param        Idempotency-Key  header  string  false  "Clave de idempotencia"
// @Param        body  body  dto.AppendStockEventRequest  true  "Evento"
// @Success      201  {object}  dto.StockEventResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/stock/events [post]
func (h *StockHandler) AppendEvent(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" || GetUserID(c) == "" {
		return unauthorized(c)
	}
	var in dto.AppendStockEventRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	ev, err := h.events.Append(c.Context(), stock.AppendEventInput{
		CompanyID:      companyID,
		WarehouseID:    in.WarehouseID,
		Type:           entity.StockEventType(in.Type),
		ReasonCode:     entity.ReasonCode(in.ReasonCode),
		Notes:          in.Notes,
		OccurredAt:     in.OccurredAt,
		IdempotencyKey: header(c, HeaderIdempotencyKey),
		Lines:          toLineInputs(in.Lines),
		Actor:          GetActor(c),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	// un reintento con la misma clave responde igual que el original
	return c.Status(fiber.StatusCreated).JSON(dto.ToStockEventResponse(ev))
}

// GetEvent devuelve un evento con sus líneas. SELLER indica warehouse_id.
func (h *StockHandler) GetEvent(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	ev, err := h.events.Read(c.Context(), GetActor(c), companyID, c.Query("warehouse_id"), param(c, "id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ToStockEventResponse(ev))
}

// ListEvents godoc
// @Summary      Listar eventos del libro
// @Tags         stock
// @Security     Bearer
// @Param        type          query  string  false  "INBOUND|OUTBOUND|ADJUSTMENT|TRANSFER_OUT|TRANSFER_IN"
// @Param        warehouse_id  query  string  false  "Bodega (obligatoria para SELLER)"
// @Param        from          query  string  false  "RFC3339 o YYYY-MM-DD"
// @Success      200  {object}  dto.ListResponse[dto.StockEventResponse]
// @Router       /api/stock/events [get]
func (h *StockHandler) ListEvents(c *fiber.Ctx) error {
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
	page := queryPage(c)
	list, total, err := h.events.List(c.Context(), GetActor(c), entity.StockEventFilter{
		CompanyID:    companyID,
		Type:         entity.StockEventType(c.Query("type")),
		WarehouseID:  c.Query("warehouse_id"),
		VariantID:    c.Query("variant_id"),
		ReasonCode:   entity.ReasonCode(c.Query("reason_code")),
		OccurredFrom: from,
		OccurredTo:   to,
		Limit:        page.Limit,
		Offset:       page.Offset,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ToStockEventList(list, total, page.Limit, page.Offset))
}

// CreateTransfer godoc
// @Summary      Crear borrador de transferencia entre bodegas
// @Tags         transfers
// @Security     Bearer
// @Param        body  body  dto.CreateTransferRequest  true  "Transferencia"
// @Success      201  {object}  dto.TransferResponse
// @Router       /api/stock/transfers [post]
func (h *StockHandler) CreateTransfer(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" || GetUserID(c) == "" {
		return unauthorized(c)
	}
	var in dto.CreateTransferRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	t, err := h.transfers.CreateDraft(c.Context(), stock.CreateTransferInput{
		CompanyID:              companyID,
		OriginWarehouseID:      in.OriginWarehouseID,
		DestinationWarehouseID: in.DestinationWarehouseID,
		Lines:                  toLineInputs(in.Lines),
		OccurredAt:             in.OccurredAt,
		Notes:                  in.Notes,
		Actor:                  GetActor(c),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToTransferResponse(t))
}

// ConfirmTransfer godoc
// @Summary      Confirmar transferencia (TRANSFER_OUT + TRANSFER_IN atómicos)
// @Tags         transfers
// @Security     Bearer
// @Param        id               path    string  true   "ID de la transferencia"
// @Param        Idempotency-Key  header  string  false  "Clave de idempotencia"
// @Success      200  {object}  dto.TransferResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/stock/transfers/{id}/confirm [post]
func (h *StockHandler) ConfirmTransfer(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" || GetUserID(c) == "" {
		return unauthorized(c)
	}
	t, err := h.transfers.Confirm(c.Context(), companyID, param(c, "id"), header(c, HeaderIdempotencyKey), GetActor(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ToTransferResponse(t))
}

// CancelTransfer cancela un borrador.
func (h *StockHandler) CancelTransfer(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" || GetUserID(c) == "" {
		return unauthorized(c)
	}
	t, err := h.transfers.Cancel(c.Context(), companyID, param(c, "id"), GetActor(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ToTransferResponse(t))
}

// GetTransfer devuelve la transferencia con sus líneas. SELLER indica warehouse_id (origen o destino).
func (h *StockHandler) GetTransfer(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	t, err := h.transfers.Read(c.Context(), GetActor(c), companyID, c.Query("warehouse_id"), param(c, "id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ToTransferResponse(t))
}

// ListTransfers lista transferencias; SELLER debe indicar bodega de origen o destino.
func (h *StockHandler) ListTransfers(c *fiber.Ctx) error {
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
	page := queryPage(c)
	list, total, err := h.transfers.List(c.Context(), GetActor(c), entity.TransferFilter{
		CompanyID:              companyID,
		Status:                 entity.TransferStatus(c.Query("status")),
		OriginWarehouseID:      c.Query("origin_warehouse_id"),
		DestinationWarehouseID: c.Query("destination_warehouse_id"),
		OccurredFrom:           from,
		OccurredTo:             to,
		Limit:                  page.Limit,
		Offset:                 page.Offset,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ToTransferList(list, total, page.Limit, page.Offset))
}

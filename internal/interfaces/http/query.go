package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger-api/internal/application/dto"
)

const dateOnly = "2006-01-02"

// queryTime acepta RFC3339 o YYYY-MM-DD (medianoche UTC). Vacío = nil.
func queryTime(c *fiber.Ctx, key string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		u := t.UTC()
		return &u, true
	}
	if t, err := time.Parse(dateOnly, raw); err == nil {
		return &t, true
	}
	return nil, false
}

func queryDecimal(c *fiber.Ctx, key string) (*decimal.Decimal, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, false
	}
	return &d, true
}

// queryList valores repetidos (?k=a&k=b) o separados por coma (?k=a,b).
func queryList(c *fiber.Ctx, key string) []string {
	var out []string
	for _, v := range c.Context().QueryArgs().PeekMulti(key) {
		for _, part := range strings.Split(string(v), ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// querySort valores "campo,dir" repetidos; cada uno conserva su coma.
func querySort(c *fiber.Ctx) []string {
	var out []string
	for _, v := range c.Context().QueryArgs().PeekMulti("sort") {
		if s := strings.TrimSpace(string(v)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func queryPage(c *fiber.Ctx) dto.PageRequest {
	p := dto.PageRequest{Limit: c.QueryInt("limit"), Offset: c.QueryInt("offset")}
	p.DefaultPage()
	return p
}

package stock

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

type fingerprintLine struct {
	VariantID string `json:"variant_id"`
	Delta     string `json:"delta"`
}

type eventFingerprint struct {
	Type        entity.StockEventType `json:"type"`
	WarehouseID string                `json:"warehouse_id"`
	ReasonCode  entity.ReasonCode     `json:"reason_code"`
	Notes       string                `json:"notes"`
	Lines       []fingerprintLine     `json:"lines"`
}

// EventFingerprint SHA-256 del payload canónico de un evento. occurredAt no participa:
// un reintento sin hora de negocio explícita debe coincidir con el original.
func EventFingerprint(typ entity.StockEventType, warehouseID string, reason entity.ReasonCode, notes string, deltas []entity.LineDelta) string {
	lines := make([]fingerprintLine, len(deltas))
	for i, d := range deltas {
		lines[i] = fingerprintLine{VariantID: d.VariantID, Delta: d.Delta.String()}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].VariantID < lines[j].VariantID })
	return hashJSON(eventFingerprint{
		Type:        typ,
		WarehouseID: warehouseID,
		ReasonCode:  reason,
		Notes:       notes,
		Lines:       lines,
	})
}

// TransferConfirmFingerprint identifica la confirmación de una transferencia concreta.
func TransferConfirmFingerprint(transferID string) string {
	return hashJSON(map[string]string{"confirm_transfer": transferID})
}

func hashJSON(v any) string {
	b, _ := json.Marshal(v)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

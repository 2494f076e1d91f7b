package entity

// Roles del actor autenticado.
const (
	RoleAdmin   = "ADMIN"
	RoleManager = "MANAGER"
	RoleSeller  = "SELLER"
)

// Actor identidad ya autenticada que ejecuta una operación del libro.
type Actor struct {
	ID   string
	Name string
	Role string
}

// IsManagerial ADMIN y MANAGER pueden operar todo el libro.
func (a Actor) IsManagerial() bool {
	return a.Role == RoleAdmin || a.Role == RoleManager
}

// CanAppend SELLER solo registra salidas; ADMIN y MANAGER cualquier evento público.
func (a Actor) CanAppend(t StockEventType) bool {
	if a.IsManagerial() {
		return true
	}
	return a.Role == RoleSeller && t == EventOutbound
}

// CanManageTransfers crear, confirmar y cancelar transferencias.
func (a Actor) CanManageTransfers() bool {
	return a.IsManagerial()
}

// CanRead SELLER debe acotar toda consulta a una bodega.
func (a Actor) CanRead(warehouseID string) bool {
	if a.IsManagerial() {
		return true
	}
	return a.Role == RoleSeller && warehouseID != ""
}

// CanReadRecord lectura de un registro concreto: SELLER indica la bodega con que consulta
// y el registro debe pertenecer a ella.
func (a Actor) CanReadRecord(scope string, recordWarehouses ...string) bool {
	if a.IsManagerial() {
		return true
	}
	if !a.CanRead(scope) {
		return false
	}
	for _, w := range recordWarehouses {
		if w == scope {
			return true
		}
	}
	return false
}

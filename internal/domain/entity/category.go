package entity

// Category categoría de productos (solo para filtros y nombres en reportes).
type Category struct {
	ID        string
	CompanyID string
	Name      string
}

// Brand marca de productos.
type Brand struct {
	ID        string
	CompanyID string
	Name      string
}

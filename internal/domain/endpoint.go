package domain

// Endpoint es un endpoint de serving seleccionable (id + nombre visible).
type Endpoint struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

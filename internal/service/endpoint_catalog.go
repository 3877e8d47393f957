package service

import (
	"strings"

	"servechat/internal/config"
	"servechat/internal/domain"
)

// NotConfiguredEndpointName se muestra cuando no hay ningun endpoint configurado.
const NotConfiguredEndpointName = "Not configured"

// ParseEndpointsCSV interpreta "id|Nombre,id2" en endpoints; sin nombre se usa el id.
func ParseEndpointsCSV(csv string) []domain.Endpoint {
	var out []domain.Endpoint
	for _, token := range strings.Split(csv, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		id, name := token, token
		if i := strings.Index(token, "|"); i >= 0 {
			id = strings.TrimSpace(token[:i])
			name = strings.TrimSpace(token[i+1:])
		}
		if id == "" {
			continue
		}
		if name == "" {
			name = id
		}
		out = append(out, domain.Endpoint{ID: id, Name: name})
	}
	return out
}

// EndpointCatalog es la lista de endpoints seleccionables y el indice por defecto.
type EndpointCatalog struct {
	Endpoints    []domain.Endpoint `json:"endpoints"`
	DefaultIndex int               `json:"default_index"`
}

// NewEndpointCatalog mezcla el CSV y el archivo de catalogo, sin duplicados (gana el primero).
// Con el CSV vacio se usa defaultID como unica entrada.
func NewEndpointCatalog(defaultID, csv string, entries []config.ModelCatalogEntry) EndpointCatalog {
	defaultID = strings.TrimSpace(defaultID)
	if strings.TrimSpace(csv) == "" {
		csv = defaultID
	}

	seen := make(map[string]struct{})
	var endpoints []domain.Endpoint
	add := func(ep domain.Endpoint) {
		if _, ok := seen[ep.ID]; ok {
			return
		}
		seen[ep.ID] = struct{}{}
		endpoints = append(endpoints, ep)
	}

	for _, ep := range ParseEndpointsCSV(csv) {
		add(ep)
	}
	for _, entry := range entries {
		if !entry.IsAllowed() {
			continue
		}
		id := entry.EndpointID()
		if id == "" {
			continue
		}
		name := strings.TrimSpace(entry.DisplayName)
		if name == "" {
			name = id
		}
		add(domain.Endpoint{ID: id, Name: name})
	}

	if len(endpoints) == 0 {
		return EndpointCatalog{Endpoints: []domain.Endpoint{{ID: "", Name: NotConfiguredEndpointName}}}
	}

	catalog := EndpointCatalog{Endpoints: endpoints}
	if defaultID != "" {
		for i, ep := range endpoints {
			if ep.ID == defaultID {
				catalog.DefaultIndex = i
				break
			}
		}
	}
	return catalog
}

// Default devuelve el id del endpoint por defecto ("" si no hay configuracion).
func (c EndpointCatalog) Default() string {
	if c.DefaultIndex < 0 || c.DefaultIndex >= len(c.Endpoints) {
		return ""
	}
	return c.Endpoints[c.DefaultIndex].ID
}

// Contains indica si el id es seleccionable.
func (c EndpointCatalog) Contains(id string) bool {
	if id == "" {
		return false
	}
	for _, ep := range c.Endpoints {
		if ep.ID == id {
			return true
		}
	}
	return false
}

// Configured es false cuando solo existe la entrada "Not configured".
func (c EndpointCatalog) Configured() bool {
	return c.Default() != ""
}

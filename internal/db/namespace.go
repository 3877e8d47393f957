package db

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

const (
	TableConversations = "conversations"
	TableMessages      = "messages"
	TableUsageEvents   = "usage_events"
)

// Namespace ubica las tablas bajo catalog.schema. Catalog es opcional.
type Namespace struct {
	Catalog string
	Schema  string
}

func (n Namespace) parts() []string {
	var parts []string
	if c := strings.TrimSpace(n.Catalog); c != "" {
		parts = append(parts, c)
	}
	if s := strings.TrimSpace(n.Schema); s != "" {
		parts = append(parts, s)
	}
	return parts
}

// Table devuelve el nombre calificado y escapado de la tabla.
func (n Namespace) Table(name string) string {
	return pgx.Identifier(append(n.parts(), name)).Sanitize()
}

// SchemaName devuelve el schema calificado, vacio si no hay schema.
func (n Namespace) SchemaName() string {
	if strings.TrimSpace(n.Schema) == "" {
		return ""
	}
	return pgx.Identifier(n.parts()).Sanitize()
}

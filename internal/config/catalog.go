package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelCatalog es el archivo opcional con los modelos habilitados.
type ModelCatalog struct {
	Models []ModelCatalogEntry `yaml:"models"`
}

type ModelCatalogEntry struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	Endpoint    string `yaml:"endpoint"`
	Allowed     *bool  `yaml:"allowed"`
}

// EndpointID devuelve el endpoint de serving; si falta, usa el id del modelo.
func (e ModelCatalogEntry) EndpointID() string {
	if ep := strings.TrimSpace(e.Endpoint); ep != "" {
		return ep
	}
	return strings.TrimSpace(e.ID)
}

// IsAllowed trata la ausencia de "allowed" como habilitado.
func (e ModelCatalogEntry) IsAllowed() bool {
	return e.Allowed == nil || *e.Allowed
}

// LoadModelCatalog lee el catalogo YAML. Un path vacio devuelve un catalogo vacio.
func LoadModelCatalog(path string) (ModelCatalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ModelCatalog{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ModelCatalog{}, fmt.Errorf("read model catalog: %w", err)
	}
	return ParseModelCatalog(raw)
}

func ParseModelCatalog(raw []byte) (ModelCatalog, error) {
	var catalog ModelCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return ModelCatalog{}, fmt.Errorf("parse model catalog: %w", err)
	}
	return catalog, nil
}

package addon

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Capabilities an add-on can declare.
const (
	// CapCatalog: the add-on ships a catalog snapshot file.
	CapCatalog = "catalog"
	// CapFunctionSignatures: the Wasm guest answers function signature lookups.
	CapFunctionSignatures = "function_signatures"
	// CapColumnValues: the Wasm guest answers column value lookups.
	CapColumnValues = "column_values"
)

var validCapabilities = []string{CapCatalog, CapFunctionSignatures, CapColumnValues}

// Engines add-ons may target.
var validEngines = []string{"postgresql"}

// Manifest represents the add-on manifest.yaml structure.
type Manifest struct {
	Name              string        `yaml:"name"`
	Version           string        `yaml:"version"`
	Engine            string        `yaml:"engine"`
	SupportedVersions []string      `yaml:"supported_versions"`
	Catalog           CatalogConfig `yaml:"catalog"`
	Wasm              WasmConfig    `yaml:"wasm"`
	Capabilities      []string      `yaml:"capabilities"`
	Author            string        `yaml:"author"`
	License           string        `yaml:"license"`

	dir string
}

// CatalogConfig points at a catalog snapshot file, relative to the manifest.
type CatalogConfig struct {
	File string `yaml:"file"`
}

// WasmConfig points at a lookup guest, relative to the manifest.
type WasmConfig struct {
	File string `yaml:"file"`
}

// ParseManifest reads and parses manifest.yaml from a directory.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, "manifest.yaml")

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir
	m.Engine = strings.ToLower(m.Engine)

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Manifest) invalid(field, format string, args ...any) error {
	return &ManifestValidationError{
		Path:    m.Path(),
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// Validate checks manifest fields and that referenced files exist.
func (m *Manifest) Validate() error {
	switch {
	case m.Name == "":
		return m.invalid("name", "name is required")
	case m.Version == "":
		return m.invalid("version", "version is required")
	case m.Engine == "":
		return m.invalid("engine", "engine is required")
	case !slices.Contains(validEngines, strings.ToLower(m.Engine)):
		return m.invalid("engine", "unsupported engine: %s (must be one of: %s)",
			m.Engine, strings.Join(validEngines, ", "))
	case len(m.Capabilities) == 0:
		return m.invalid("capabilities", "at least one capability is required")
	}

	for _, c := range m.Capabilities {
		if !slices.Contains(validCapabilities, c) {
			return m.invalid("capabilities", "unknown capability: %s (must be one of: %s)",
				c, strings.Join(validCapabilities, ", "))
		}
	}

	if m.HasCapability(CapCatalog) {
		if m.Catalog.File == "" {
			return m.invalid("catalog.file", "catalog.file is required for the %s capability", CapCatalog)
		}
		if _, err := os.Stat(m.CatalogPath()); os.IsNotExist(err) {
			return &MissingFileError{ManifestPath: m.Path(), Field: "catalog.file", File: m.Catalog.File}
		}
	}

	if m.NeedsWasm() {
		if m.Wasm.File == "" {
			return m.invalid("wasm.file", "wasm.file is required for live lookups")
		}
		if _, err := os.Stat(m.WasmPath()); os.IsNotExist(err) {
			return &MissingFileError{ManifestPath: m.Path(), Field: "wasm.file", File: m.Wasm.File}
		}
	}

	return nil
}

// HasCapability reports whether the manifest declares c.
func (m *Manifest) HasCapability(c string) bool {
	return slices.Contains(m.Capabilities, c)
}

// NeedsWasm reports whether any declared capability is served by the guest.
func (m *Manifest) NeedsWasm() bool {
	return m.HasCapability(CapFunctionSignatures) || m.HasCapability(CapColumnValues)
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, "manifest.yaml")
}

// CatalogPath returns the path to the catalog snapshot file.
func (m *Manifest) CatalogPath() string {
	return filepath.Join(m.dir, m.Catalog.File)
}

// WasmPath returns the path to the Wasm file.
func (m *Manifest) WasmPath() string {
	return filepath.Join(m.dir, m.Wasm.File)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}

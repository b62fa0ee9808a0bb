package addon

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseManifest_Valid(t *testing.T) {
	dir := filepath.Join("testdata", "addons", "valid-postgresql")

	manifest, err := ParseManifest(dir)
	if err != nil {
		t.Fatalf("ParseManifest() failed: %v", err)
	}

	if manifest.Name != "postgresql" {
		t.Errorf("expected Name 'postgresql', got '%s'", manifest.Name)
	}

	if manifest.Version != "1.0.0" {
		t.Errorf("expected Version '1.0.0', got '%s'", manifest.Version)
	}

	if manifest.Engine != "postgresql" {
		t.Errorf("expected Engine normalized to 'postgresql', got '%s'", manifest.Engine)
	}

	if len(manifest.SupportedVersions) != 3 {
		t.Errorf("expected 3 supported versions, got %d", len(manifest.SupportedVersions))
	}

	if manifest.WasmPath() != filepath.Join(dir, "lookup.wasm") {
		t.Errorf("unexpected WasmPath '%s'", manifest.WasmPath())
	}

	if manifest.CatalogPath() != filepath.Join(dir, "catalog.yaml") {
		t.Errorf("unexpected CatalogPath '%s'", manifest.CatalogPath())
	}

	if !manifest.HasCapability(CapColumnValues) || manifest.HasCapability(CapFunctionSignatures) {
		t.Errorf("unexpected capabilities %v", manifest.Capabilities)
	}

	if !manifest.NeedsWasm() {
		t.Error("column_values should need the Wasm guest")
	}
}

func TestParseManifest_CatalogOnly(t *testing.T) {
	manifest, err := ParseManifest(filepath.Join("testdata", "addons", "catalog-only"))
	if err != nil {
		t.Fatalf("ParseManifest() failed: %v", err)
	}

	if manifest.NeedsWasm() {
		t.Error("catalog-only add-on should not need a Wasm guest")
	}
}

func TestParseManifest_NotFound(t *testing.T) {
	dir := filepath.Join("testdata", "addons", "nonexistent")

	_, err := ParseManifest(dir)
	if err == nil {
		t.Fatal("ParseManifest() should fail for nonexistent directory")
	}

	var notFound *ManifestNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected ManifestNotFoundError, got %T", err)
	}
}

func TestParseManifest_InvalidYAML(t *testing.T) {
	dir := filepath.Join("testdata", "addons", "invalid-yaml", "broken")

	_, err := ParseManifest(dir)
	var parseErr *ManifestParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ManifestParseError, got %T (%v)", err, err)
	}
}

func TestParseManifest_MissingFields(t *testing.T) {
	_, err := ParseManifest(filepath.Join("testdata", "addons", "missing-fields"))

	var validationErr *ManifestValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ManifestValidationError, got %T", err)
	}
	if validationErr.Field != "version" {
		t.Errorf("expected field 'version', got '%s'", validationErr.Field)
	}
}

func TestParseManifest_UnknownCapability(t *testing.T) {
	_, err := ParseManifest(filepath.Join("testdata", "addons", "unknown-capability"))

	var validationErr *ManifestValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ManifestValidationError, got %T", err)
	}
	if validationErr.Field != "capabilities" {
		t.Errorf("expected field 'capabilities', got '%s'", validationErr.Field)
	}
}

func TestParseManifest_WasmNotFound(t *testing.T) {
	_, err := ParseManifest(filepath.Join("testdata", "addons", "missing-wasm"))

	var missing *MissingFileError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFileError, got %T", err)
	}
	if missing.Field != "wasm.file" || missing.File != "nonexistent.wasm" {
		t.Errorf("expected wasm.file 'nonexistent.wasm', got %s '%s'", missing.Field, missing.File)
	}
}

func TestManifest_Validate(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		manifest Manifest
		field    string
	}{
		{
			name:     "missing name",
			manifest: Manifest{Version: "1", Engine: "postgresql", Capabilities: []string{CapCatalog}},
			field:    "name",
		},
		{
			name:     "missing engine",
			manifest: Manifest{Name: "a", Version: "1", Capabilities: []string{CapCatalog}},
			field:    "engine",
		},
		{
			name:     "unsupported engine",
			manifest: Manifest{Name: "a", Version: "1", Engine: "oracle", Capabilities: []string{CapCatalog}},
			field:    "engine",
		},
		{
			name:     "no capabilities",
			manifest: Manifest{Name: "a", Version: "1", Engine: "postgresql"},
			field:    "capabilities",
		},
		{
			name:     "catalog capability without file",
			manifest: Manifest{Name: "a", Version: "1", Engine: "postgresql", Capabilities: []string{CapCatalog}},
			field:    "catalog.file",
		},
		{
			name:     "lookup capability without wasm",
			manifest: Manifest{Name: "a", Version: "1", Engine: "postgresql", Capabilities: []string{CapFunctionSignatures}},
			field:    "wasm.file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.manifest.dir = dir
			err := tt.manifest.Validate()

			var validationErr *ManifestValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ManifestValidationError, got %v", err)
			}
			if validationErr.Field != tt.field {
				t.Errorf("expected field '%s', got '%s'", tt.field, validationErr.Field)
			}
		})
	}
}

func TestManifest_CatalogNotFound(t *testing.T) {
	dir := t.TempDir()
	content := "name: a\nversion: '1'\nengine: postgresql\ncatalog:\n  file: gone.yaml\ncapabilities: [catalog]\n"
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := ParseManifest(dir)
	var missing *MissingFileError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFileError, got %T", err)
	}
	if missing.Field != "catalog.file" {
		t.Errorf("expected field catalog.file, got %s", missing.Field)
	}
}

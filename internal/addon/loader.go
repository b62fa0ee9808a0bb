package addon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/sqlcursor/internal/catalog"
	"github.com/woxQAQ/sqlcursor/internal/wasm"
)

// Loader loads add-ons from disk.
type Loader struct {
	moduleLoader *wasm.ModuleLoader
	logger       *zap.Logger
}

// NewLoader creates a new add-on loader.
func NewLoader(runtime *wasm.Runtime, logger *zap.Logger) *Loader {
	return &Loader{
		moduleLoader: wasm.NewModuleLoader(runtime, logger),
		logger:       logger.With(zap.String("component", "addon-loader")),
	}
}

// LoadAddon loads a single add-on from a directory: its snapshot file and
// its compiled lookup guest, whichever the manifest declares.
func (l *Loader) LoadAddon(ctx context.Context, dir string) (*Addon, error) {
	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading add-on",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.String("engine", manifest.Engine),
		zap.Strings("capabilities", manifest.Capabilities),
	)

	addon := &Addon{
		Manifest: manifest,
		LoadedAt: time.Now(),
	}

	if manifest.HasCapability(CapCatalog) {
		snap, err := catalog.LoadSnapshotFile(manifest.CatalogPath())
		if err != nil {
			return nil, &AddonLoadError{AddonName: manifest.Name, Err: err}
		}
		addon.Snapshot = snap
	}

	if manifest.NeedsWasm() {
		compiled, err := l.moduleLoader.LoadModuleFromFile(ctx, manifest.WasmPath())
		if err != nil {
			return nil, &AddonLoadError{AddonName: manifest.Name, Err: err}
		}
		if err := wasm.ValidateLookupABI(compiled); err != nil {
			return nil, &AddonLoadError{AddonName: manifest.Name, Err: err}
		}
		addon.Compiled = compiled
	}

	l.logger.Info("Add-on loaded successfully",
		zap.String("name", manifest.Name),
		zap.Int("catalog_objects", addon.Snapshot.Len()),
		zap.Bool("live_lookup", addon.Compiled != nil),
	)

	return addon, nil
}

// DiscoverAddons loads every subdirectory of paths as an add-on. Add-ons
// that fail to load are logged and skipped.
func (l *Loader) DiscoverAddons(ctx context.Context, paths []string) ([]*Addon, error) {
	var addons []*Addon
	var errs []error

	for _, basePath := range paths {
		l.logger.Debug("Scanning add-on directory", zap.String("path", basePath))

		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Add-on path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			addonDir := filepath.Join(basePath, entry.Name())

			addon, err := l.LoadAddon(ctx, addonDir)
			if err != nil {
				l.logger.Error("Failed to load add-on",
					zap.String("dir", addonDir),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}

			addons = append(addons, addon)
		}
	}

	if len(addons) > 0 && len(errs) > 0 {
		l.logger.Warn("Some add-ons failed to load",
			zap.Int("loaded", len(addons)),
			zap.Int("failed", len(errs)),
		)
	}

	if len(addons) == 0 {
		return nil, &NoAddonsFoundError{Paths: paths}
	}

	return addons, nil
}

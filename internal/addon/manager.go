package addon

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/woxQAQ/sqlcursor/internal/catalog"
	"github.com/woxQAQ/sqlcursor/internal/config"
	"github.com/woxQAQ/sqlcursor/internal/wasm"
)

// Manager loads the add-ons for the configured engine and combines them
// into one catalog snapshot and one live lookup.
type Manager struct {
	cfg         *config.ServerConfig
	runtime     *wasm.Runtime
	loader      *Loader
	registry    *Registry
	instanceMgr *wasm.InstanceManager
	logger      *zap.Logger

	mu      sync.RWMutex
	loaded  bool
	lookups []*wasm.Lookup
}

// NewManager creates a new add-on manager. The manager owns runtime and
// closes it on Shutdown.
func NewManager(cfg *config.ServerConfig, runtime *wasm.Runtime, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		runtime:     runtime,
		loader:      NewLoader(runtime, logger),
		registry:    NewRegistry(logger),
		instanceMgr: wasm.NewInstanceManager(runtime, logger),
		logger:      logger.With(zap.String("component", "addon-manager")),
	}
}

// LoadAll discovers and registers the add-ons under cfg.AddonPaths. Finding
// none is not an error.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return fmt.Errorf("add-ons already loaded")
	}

	m.logger.Info("Loading add-ons",
		zap.Strings("paths", m.cfg.AddonPaths),
	)

	addons, err := m.loader.DiscoverAddons(ctx, m.cfg.AddonPaths)
	if err != nil {
		var none *NoAddonsFoundError
		if errors.As(err, &none) {
			m.logger.Warn("No add-ons found in configured paths",
				zap.Strings("paths", m.cfg.AddonPaths),
			)
			m.loaded = true
			return nil
		}
		return err
	}

	for _, addon := range addons {
		if err := m.registry.Register(addon); err != nil {
			m.logger.Error("Failed to register add-on",
				zap.String("name", addon.Name()),
				zap.Error(err),
			)
			continue
		}
		if addon.Compiled != nil {
			m.lookups = append(m.lookups, wasm.NewLookup(m.instanceMgr, addon.Compiled.Name, m.logger))
		}
	}

	m.loaded = true

	m.logger.Info("Add-ons loaded successfully",
		zap.Int("count", m.registry.Count()),
	)

	return nil
}

// GetAddon retrieves an add-on by name.
func (m *Manager) GetAddon(name string) (*Addon, error) {
	addon, ok := m.registry.Get(name)
	if !ok {
		return nil, &AddonNotFoundError{AddonName: name}
	}
	return addon, nil
}

// FindAddonForEngine returns the first add-on registered for engine.
func (m *Manager) FindAddonForEngine(engine string) (*Addon, error) {
	addons := m.registry.LookupByEngine(engine)
	if len(addons) == 0 {
		return nil, fmt.Errorf("no add-on found for engine '%s'", engine)
	}
	return addons[0], nil
}

// Snapshot merges the snapshots of the add-ons for the configured engine,
// in registration order. It is nil when none ships a catalog.
func (m *Manager) Snapshot() *catalog.Snapshot {
	var snap *catalog.Snapshot
	for _, addon := range m.registry.LookupByEngine(m.cfg.Catalog.Engine) {
		snap = snap.Merge(addon.Snapshot)
	}
	return snap
}

// LiveLookup returns the guest lookups of the add-ons for the configured
// engine, each limited to the capabilities its manifest declares. It is
// nil when no add-on ships a guest.
func (m *Manager) LiveLookup() catalog.LiveLookup {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out catalog.Lookups
	for _, addon := range m.registry.LookupByEngine(m.cfg.Catalog.Engine) {
		if addon.Compiled == nil {
			continue
		}
		for _, l := range m.lookups {
			if l.ModuleName() == addon.Compiled.Name {
				out = append(out, capabilityLookup{
					lookup:     l,
					signatures: addon.Manifest.HasCapability(CapFunctionSignatures),
					values:     addon.Manifest.HasCapability(CapColumnValues),
				})
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Shutdown releases guest instances and closes the runtime.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down add-on manager")

	m.mu.Lock()
	for _, l := range m.lookups {
		if err := l.Close(ctx); err != nil {
			m.logger.Warn("Failed to close lookup", zap.String("module", l.ModuleName()), zap.Error(err))
		}
	}
	m.lookups = nil
	m.mu.Unlock()

	if err := m.runtime.Close(ctx); err != nil {
		m.logger.Error("Failed to shutdown runtime", zap.Error(err))
		return err
	}

	m.logger.Info("Add-on manager shutdown complete")
	return nil
}

// Registry returns the add-on registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// IsLoaded returns whether add-ons have been loaded.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// capabilityLookup answers only the queries an add-on declared.
type capabilityLookup struct {
	lookup     catalog.LiveLookup
	signatures bool
	values     bool
}

func (c capabilityLookup) FunctionSignatures(ctx context.Context, name string) ([]catalog.Object, error) {
	if !c.signatures {
		return nil, nil
	}
	return c.lookup.FunctionSignatures(ctx, name)
}

func (c capabilityLookup) ColumnValues(ctx context.Context, req catalog.ColumnValuesRequest) ([]string, error) {
	if !c.values {
		return nil, nil
	}
	return c.lookup.ColumnValues(ctx, req)
}

package addon

import (
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Registry holds loaded add-ons indexed by name and engine.
type Registry struct {
	sync.RWMutex
	addons   map[string]*Addon   // name -> addon
	byEngine map[string][]*Addon // lower-cased engine -> addons, in registration order
	logger   *zap.Logger
}

// NewRegistry creates a new add-on registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		addons:   make(map[string]*Addon),
		byEngine: make(map[string][]*Addon),
		logger:   logger.With(zap.String("component", "addon-registry")),
	}
}

// Register adds an add-on. Names are unique.
func (r *Registry) Register(addon *Addon) error {
	r.Lock()
	defer r.Unlock()

	name := addon.Name()
	if _, exists := r.addons[name]; exists {
		return &AddonAlreadyRegisteredError{AddonName: name}
	}

	r.addons[name] = addon
	engine := strings.ToLower(addon.Engine())
	r.byEngine[engine] = append(r.byEngine[engine], addon)

	r.logger.Info("Add-on registered",
		zap.String("name", name),
		zap.String("engine", engine),
	)

	return nil
}

// Get retrieves an add-on by name.
func (r *Registry) Get(name string) (*Addon, bool) {
	r.RLock()
	defer r.RUnlock()

	addon, ok := r.addons[name]
	return addon, ok
}

// LookupByEngine returns the add-ons for an engine in registration order.
// Engine names compare case-insensitively.
func (r *Registry) LookupByEngine(engine string) []*Addon {
	r.RLock()
	defer r.RUnlock()

	return slices.Clone(r.byEngine[strings.ToLower(engine)])
}

// List returns all registered add-ons sorted by name.
func (r *Registry) List() []*Addon {
	r.RLock()
	defer r.RUnlock()

	result := make([]*Addon, 0, len(r.addons))
	for _, addon := range r.addons {
		result = append(result, addon)
	}
	slices.SortFunc(result, func(a, b *Addon) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return result
}

// Unregister removes an add-on.
func (r *Registry) Unregister(name string) {
	r.Lock()
	defer r.Unlock()

	addon, ok := r.addons[name]
	if !ok {
		return
	}

	engine := strings.ToLower(addon.Engine())
	r.byEngine[engine] = slices.DeleteFunc(r.byEngine[engine], func(a *Addon) bool {
		return a.Name() == name
	})
	if len(r.byEngine[engine]) == 0 {
		delete(r.byEngine, engine)
	}
	delete(r.addons, name)

	r.logger.Info("Add-on unregistered", zap.String("name", name))
}

// Count returns the number of registered add-ons.
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.addons)
}

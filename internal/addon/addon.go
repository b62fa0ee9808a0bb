// Package addon discovers catalog add-ons on disk. An add-on contributes a
// catalog snapshot, a Wasm guest answering live lookups, or both.
package addon

import (
	"slices"
	"time"

	"github.com/woxQAQ/sqlcursor/internal/catalog"
	"github.com/woxQAQ/sqlcursor/internal/wasm"
)

// Addon is a loaded add-on.
type Addon struct {
	Manifest *Manifest

	// Snapshot is nil unless the add-on has the catalog capability.
	Snapshot *catalog.Snapshot

	// Compiled is nil unless the add-on ships a lookup guest.
	Compiled *wasm.CompiledModule

	LoadedAt time.Time
}

func (a *Addon) Name() string {
	return a.Manifest.Name
}

func (a *Addon) Engine() string {
	return a.Manifest.Engine
}

func (a *Addon) Version() string {
	return a.Manifest.Version
}

func (a *Addon) Capabilities() []string {
	return a.Manifest.Capabilities
}

// SupportsVersion checks if the add-on supports a specific database
// version. An add-on that lists no versions supports all of them.
func (a *Addon) SupportsVersion(version string) bool {
	return len(a.Manifest.SupportedVersions) == 0 || slices.Contains(a.Manifest.SupportedVersions, version)
}

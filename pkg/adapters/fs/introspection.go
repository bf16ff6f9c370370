package fs

import (
	"slices"

	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Path          string   `json:"path"`
	SystemDir     string   `json:"system_dir"`
	Format        string   `json:"format"`
	CacheSize     int      `json:"cache_size"`
	Strict        bool     `json:"strict"`
	Serializers   []string `json:"serializers"`
	WatcherActive bool     `json:"watcher_active"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	serializers := make([]string, 0, len(s.serializers))
	for ext := range s.serializers {
		serializers = append(serializers, ext)
	}
	slices.Sort(serializers)

	return StoreState{
		Path:          s.config.Path,
		SystemDir:     s.config.SystemDir,
		Format:        s.config.Format,
		CacheSize:     s.cache.Len(),
		Strict:        s.config.Strict,
		Serializers:   serializers,
		WatcherActive: s.watcherActive.Load(),
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "fs-store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)

package core

import (
	"github.com/aretw0/introspection"
)

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Kind      Kind   `json:"kind"`
	Owner     string `json:"owner"`
	StoreType string `json:"store_type"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	storeType := "store"
	if comp, ok := r.store.(introspection.Component); ok {
		storeType = comp.ComponentType()
	}
	return RepositoryState{
		Kind:      r.kind,
		Owner:     r.owner,
		StoreType: storeType,
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "repository"
}

var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)

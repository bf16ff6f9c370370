package fieldbook

import (
	"context"
	"log/slog"

	"github.com/aretw0/fieldbook/internal/platform"
	"github.com/aretw0/fieldbook/pkg/core"
	"github.com/aretw0/fieldbook/pkg/sync"
)

// --- Configuration ---

// Option defines a functional option for opening a store.
type Option = platform.Option

// WithAdapter selects the storage backend: "sqlite" (default), "fs" or "memory".
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithPath sets the database file (sqlite) or root directory (fs).
func WithPath(path string) Option {
	return platform.WithPath(path)
}

// WithFormat sets the file format of the fs backend: "json" or "yaml".
func WithFormat(format string) Option {
	return platform.WithFormat(format)
}

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithStore injects a ready store.
func WithStore(store core.Store) Option {
	return platform.WithStore(store)
}

// WithStrict decodes fs numbers as json.Number.
func WithStrict(strict bool) Option {
	return platform.WithStrict(strict)
}

// WithMustExist fails when the fs root directory does not exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithForceTemp re-roots the store path into a temporary directory.
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety controls the sandbox applied when running via `go run`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// --- Factory ---

// Open builds and initializes the store selected by opts.
func Open(ctx context.Context, opts ...Option) (core.Store, error) {
	return platform.OpenStore(ctx, opts...)
}

// Close releases store when it holds resources.
func Close(store core.Store) error {
	return platform.CloseStore(store)
}

// NewRepository returns a repository of kind scoped to owner.
func NewRepository(store core.Store, kind core.Kind, owner string, opts ...core.RepositoryOption) (*core.Repository, error) {
	return core.NewRepository(store, kind, owner, opts...)
}

// NewEngine returns a sync engine over store and remote.
func NewEngine(store core.Store, remote core.RemoteDAO, users core.UserProvider, opts ...sync.Option) (*sync.Engine, error) {
	return sync.New(store, remote, users, opts...)
}

// --- Utils ---

// FindRoot looks upwards from startDir for a fieldbook.yaml file or a
// .fieldbook directory.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}

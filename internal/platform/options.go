package platform

import (
	"log/slog"

	"github.com/aretw0/fieldbook/pkg/core"
)

// options holds the internal configuration of a store.
type options struct {
	store      core.Store
	logger     *slog.Logger
	adapter    string
	path       string
	format     string
	strict     bool
	mustExist  bool
	systemDir  string
	forceTemp  bool
	devSafety  bool
	onWatchErr func(error)
}

// Option defines a functional option for opening a store.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter:   "sqlite",
		devSafety: true,
	}
}

// WithAdapter selects the storage backend by name: "sqlite" (default), "fs"
// or "memory".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithPath sets the database file (sqlite) or root directory (fs).
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithFormat sets the file format of the fs backend: "json" or "yaml".
func WithFormat(format string) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore injects a ready store. The adapter options are then ignored.
func WithStore(store core.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithStrict makes the fs backend decode numbers as json.Number so large
// integers keep their precision.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithMustExist fails when the fs root directory does not exist yet.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithSystemDir sets the hidden bookkeeping directory of the fs backend.
// Defaults to ".fieldbook".
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.systemDir = name
	}
}

// WithForceTemp re-roots the store path into a temporary directory.
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithDevSafety controls the sandbox applied when running via `go run`.
// By default (true) file-backed stores are re-rooted into a temporary
// directory so development runs never touch real field data.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}

// WithWatcherErrorHandler receives asynchronous errors of the fs watcher.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onWatchErr = fn
	}
}

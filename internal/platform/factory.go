package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/fieldbook/pkg/adapters/fs"
	"github.com/aretw0/fieldbook/pkg/adapters/memory"
	"github.com/aretw0/fieldbook/pkg/adapters/sqlite"
	"github.com/aretw0/fieldbook/pkg/core"
)

// OpenStore builds the store selected by the options and initializes it.
func OpenStore(ctx context.Context, opts ...Option) (core.Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	if o.store != nil {
		return o.store, nil
	}

	var (
		store core.Store
		err   error
	)
	switch o.adapter {
	case "memory":
		store = memory.New()
	case "sqlite":
		store, err = openSQLite(o)
	case "fs":
		store, err = openFS(o)
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
	if err != nil {
		return nil, err
	}

	if init, ok := store.(core.Initializer); ok {
		if err := init.Initialize(ctx); err != nil {
			_ = CloseStore(store)
			return nil, err
		}
	}
	return store, nil
}

// CloseStore releases store when it holds resources.
func CloseStore(store core.Store) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func openSQLite(o *options) (core.Store, error) {
	path := o.path
	if path == "" {
		path = "fieldbook.db"
	}
	if path != sqlite.MemoryPath {
		path = o.resolvePath(path)
	}
	return sqlite.Open(sqlite.Config{Path: path, Logger: o.logger})
}

func openFS(o *options) (core.Store, error) {
	path := o.path
	if path == "" {
		path = "."
	}
	return fs.NewStore(fs.Config{
		Path:         o.resolvePath(path),
		Format:       o.format,
		Strict:       o.strict,
		MustExist:    o.mustExist,
		SystemDir:    o.systemDir,
		Logger:       o.logger,
		ErrorHandler: o.onWatchErr,
	})
}

// resolvePath applies the dev sandbox to file-backed stores.
func (o *options) resolvePath(path string) string {
	useTemp := o.forceTemp || (o.devSafety && IsDevRun())
	resolved := ResolveStorePath(path, useTemp)
	if resolved != path {
		o.logger.Warn("running in SAFE MODE (dev sandbox)", "original_path", path, "resolved_path", resolved)
	}
	return resolved
}

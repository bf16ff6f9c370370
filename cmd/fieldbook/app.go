package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/fieldbook"
	"github.com/aretw0/fieldbook/pkg/adapters/httpdao"
	"github.com/aretw0/fieldbook/pkg/core"
	"github.com/aretw0/fieldbook/pkg/sync"
)

func currentUser() core.StaticUser {
	return core.StaticUser{
		Username:     cfg.User.Name,
		Verified:     cfg.User.Verified,
		Organisation: cfg.User.Organisation,
	}
}

func openStore(ctx context.Context) core.Store {
	store, err := fieldbook.Open(ctx,
		fieldbook.WithAdapter(cfg.Store.Adapter),
		fieldbook.WithPath(cfg.Store.Path),
		fieldbook.WithFormat(cfg.Store.Format),
		fieldbook.WithLogger(slog.Default()),
	)
	if err != nil {
		fatal("Failed to open store", err)
	}
	return store
}

func selectedKind() core.Kind {
	kind := core.Kind(kindName)
	if !kind.Valid() {
		fatal("Invalid kind", fmt.Errorf("%q", kindName))
	}
	return kind
}

// openRepository opens the store and scopes a repository of the selected
// kind to the configured user.
func openRepository(ctx context.Context) (*core.Repository, core.Store) {
	if err := cfg.RequireUser(); err != nil {
		fatal("No user", err)
	}
	store := openStore(ctx)
	repo, err := fieldbook.NewRepository(store, selectedKind(), cfg.User.Name,
		core.WithOrganisation(cfg.User.Organisation))
	if err != nil {
		fatal("Failed to open repository", err)
	}
	return repo, store
}

func newRemote() *httpdao.Client {
	client, err := httpdao.New(httpdao.Config{
		BaseURL: cfg.Remote.URL,
		Token:   cfg.Remote.Token,
		Timeout: cfg.Remote.Timeout,
		Rate:    cfg.Remote.Rate,
		Burst:   cfg.Remote.Burst,
		Logger:  slog.Default(),
	})
	if err != nil {
		fatal("Failed to configure remote", err)
	}
	return client
}

func newEngine(store core.Store, opts ...sync.Option) *sync.Engine {
	kinds := make([]core.Kind, 0, len(cfg.Sync.Kinds))
	for _, k := range cfg.Sync.Kinds {
		kinds = append(kinds, core.Kind(k))
	}
	opts = append([]sync.Option{
		sync.WithKinds(kinds...),
		sync.WithLogger(slog.Default()),
		sync.WithOrganisation(cfg.User.Organisation),
	}, opts...)

	engine, err := fieldbook.NewEngine(store, newRemote(), currentUser(), opts...)
	if err != nil {
		fatal("Failed to create sync engine", err)
	}
	return engine
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fatal("Failed to encode JSON", err)
	}
}

type recordView struct {
	ID      string      `json:"id"`
	ShortID string      `json:"short_id"`
	Owner   string      `json:"owner"`
	Synced  bool        `json:"synced"`
	Fields  core.Fields `json:"fields"`
}

func viewOf(rec core.Record) recordView {
	return recordView{
		ID:      rec.ID,
		ShortID: rec.ShortID(),
		Owner:   rec.Owner,
		Synced:  rec.Synced,
		Fields:  rec.Fields,
	}
}

func printRecords(recs []core.Record, asJSON bool) {
	if asJSON {
		views := make([]recordView, 0, len(recs))
		for _, r := range recs {
			views = append(views, viewOf(r))
		}
		printJSON(views)
		return
	}
	for _, r := range recs {
		state := "synced"
		if !r.Synced {
			state = "pending"
		}
		name, _ := r.Fields["name"].(string)
		fmt.Printf("%s  %-7s  %s\n", r.ShortID(), state, name)
	}
}

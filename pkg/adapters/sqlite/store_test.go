package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/fieldbook/pkg/adapters/sqlite"
	"github.com/aretw0/fieldbook/pkg/core"
	"github.com/aretw0/fieldbook/pkg/core/storetest"
)

func setupStore(t *testing.T, opts ...func(*sqlite.Config)) (*sqlite.Store, string) {
	t.Helper()
	cfg := sqlite.Config{Path: filepath.Join(t.TempDir(), "data", "fieldbook.db")}
	for _, opt := range opts {
		opt(&cfg)
	}
	s, err := sqlite.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, cfg.Path
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) core.Store {
		s, _ := setupStore(t)
		return s
	})
}

func TestStoreContract_SmallPages(t *testing.T) {
	storetest.Run(t, func(t *testing.T) core.Store {
		s, _ := setupStore(t, func(c *sqlite.Config) { c.PageSize = 1 })
		return s
	})
}

func TestStore_InMemory(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.Open(sqlite.Config{Path: sqlite.MemoryPath})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Put(ctx, core.KindEnquiry, core.Row{ID: "e1", Owner: "u", Fields: core.Fields{"a": "b"}}))
	n, err := s.Count(ctx, core.KindEnquiry, core.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path := setupStore(t)
	require.NoError(t, s.Put(ctx, core.KindChild, core.Row{ID: "id1", Owner: "user1", Synced: true, Fields: core.Fields{"name": "child1"}}))
	require.NoError(t, s.Close())

	reopened, err := sqlite.Open(sqlite.Config{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, core.KindChild, core.Key{Owner: "user1", ID: "id1"})
	require.NoError(t, err)
	assert.True(t, got.Synced)
	assert.Equal(t, "child1", got.Fields["name"])
}

func TestStore_RejectsInvalidKind(t *testing.T) {
	s, _ := setupStore(t)
	err := s.Put(context.Background(), core.Kind("x; DROP TABLE y"), core.Row{ID: "1", Owner: "u"})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}

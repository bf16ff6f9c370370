// Package storetest holds the contract suite every core.Store backend must
// pass.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/fieldbook/pkg/core"
)

// Factory builds an empty store for one subtest.
type Factory func(t *testing.T) core.Store

// Run executes the store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("Get Missing Returns NotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, core.KindChild, core.Key{Owner: "user1", ID: "nope"})
		require.Error(t, err)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("Put Then Get Round Trips Fields", func(t *testing.T) {
		s := newStore(t)
		row := core.Row{
			ID:    "id1",
			Owner: "user1",
			Fields: core.Fields{
				"name":   "child1",
				"age":    float64(7),
				"tags":   []any{"a", "b"},
				"nested": map[string]any{"k": "v"},
			},
		}
		require.NoError(t, s.Put(ctx, core.KindChild, row))

		got, err := s.Get(ctx, core.KindChild, row.Key())
		require.NoError(t, err)
		assert.Equal(t, "id1", got.ID)
		assert.Equal(t, "user1", got.Owner)
		assert.False(t, got.Synced)
		assert.Equal(t, "child1", got.Fields["name"])
		assert.EqualValues(t, 7, got.Fields["age"])
		assert.Equal(t, []any{"a", "b"}, got.Fields["tags"])
		assert.Equal(t, map[string]any{"k": "v"}, got.Fields["nested"])
	})

	t.Run("Put Replaces And Keeps Position", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, s.Put(ctx, core.KindChild, core.Row{ID: id, Owner: "u", Fields: core.Fields{"v": id}}))
		}
		require.NoError(t, s.Put(ctx, core.KindChild, core.Row{ID: "a", Owner: "u", Synced: true, Fields: core.Fields{"v": "replaced"}}))

		got, err := s.Get(ctx, core.KindChild, core.Key{Owner: "u", ID: "a"})
		require.NoError(t, err)
		assert.True(t, got.Synced)
		assert.Equal(t, core.Fields{"v": "replaced"}, got.Fields)

		assert.Equal(t, []string{"a", "b", "c"}, ids(t, s.Scan(ctx, core.KindChild, core.Filter{})))
	})

	t.Run("Same ID Under Different Owners", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, core.KindChild, core.Row{ID: "dup", Owner: "a", Fields: core.Fields{"v": "a"}}))
		require.NoError(t, s.Put(ctx, core.KindChild, core.Row{ID: "dup", Owner: "b", Fields: core.Fields{"v": "b"}}))

		ra, err := s.Get(ctx, core.KindChild, core.Key{Owner: "a", ID: "dup"})
		require.NoError(t, err)
		rb, err := s.Get(ctx, core.KindChild, core.Key{Owner: "b", ID: "dup"})
		require.NoError(t, err)
		assert.Equal(t, "a", ra.Fields["v"])
		assert.Equal(t, "b", rb.Fields["v"])
	})

	t.Run("Kinds Are Separate Tables", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, core.KindChild, core.Row{ID: "x", Owner: "u", Fields: core.Fields{}}))

		_, err := s.Get(ctx, core.KindEnquiry, core.Key{Owner: "u", ID: "x"})
		assert.True(t, core.IsNotFound(err))

		n, err := s.Count(ctx, core.KindEnquiry, core.Filter{})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("Scan Filters And Orders", func(t *testing.T) {
		s := newStore(t)
		rows := []core.Row{
			{ID: "1", Owner: "u", Fields: core.Fields{"n": "one"}},
			{ID: "2", Owner: "other", Fields: core.Fields{"n": "two"}},
			{ID: "3", Owner: "u", Synced: true, Fields: core.Fields{"n": "three"}},
			{ID: "4", Owner: "u", Fields: core.Fields{"n": "four"}},
		}
		for _, r := range rows {
			require.NoError(t, s.Put(ctx, core.KindEnquiry, r))
		}

		assert.Equal(t, []string{"1", "3", "4"}, ids(t, s.Scan(ctx, core.KindEnquiry, core.Filter{Owner: "u"})))
		assert.Equal(t, []string{"1", "4"}, ids(t, s.Scan(ctx, core.KindEnquiry, core.Filter{Owner: "u", Unsynced: true})))
		assert.Equal(t, []string{"4", "3", "2", "1"}, ids(t, s.Scan(ctx, core.KindEnquiry, core.Filter{Order: core.OrderInsertionDesc})))

		match := core.Filter{Match: func(r core.Row) bool { return r.Fields["n"] == "two" }}
		assert.Equal(t, []string{"2"}, ids(t, s.Scan(ctx, core.KindEnquiry, match)))

		n, err := s.Count(ctx, core.KindEnquiry, core.Filter{Owner: "u", Unsynced: true})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("Scan Is Restartable", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, core.KindChild, core.Row{ID: "a", Owner: "u", Fields: core.Fields{}}))
		seq := s.Scan(ctx, core.KindChild, core.Filter{})

		assert.Equal(t, []string{"a"}, ids(t, seq))
		require.NoError(t, s.Put(ctx, core.KindChild, core.Row{ID: "b", Owner: "u", Fields: core.Fields{}}))
		assert.Equal(t, []string{"a", "b"}, ids(t, seq))
	})

	t.Run("Writes During Scan", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"a", "b"} {
			require.NoError(t, s.Put(ctx, core.KindChild, core.Row{ID: id, Owner: "u", Fields: core.Fields{}}))
		}
		for r, err := range s.Scan(ctx, core.KindChild, core.Filter{Unsynced: true}) {
			require.NoError(t, err)
			r.Synced = true
			require.NoError(t, s.Put(ctx, core.KindChild, r))
		}
		n, err := s.Count(ctx, core.KindChild, core.Filter{Unsynced: true})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func ids(t *testing.T, seq func(func(core.Row, error) bool)) []string {
	t.Helper()
	var out []string
	for r, err := range seq {
		require.NoError(t, err)
		out = append(out, r.ID)
	}
	return out
}

package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/fieldbook/pkg/adapters/memory"
	"github.com/aretw0/fieldbook/pkg/core"
	"github.com/aretw0/fieldbook/pkg/core/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) core.Store {
		return memory.New()
	})
}

func TestStore_DoesNotAliasFields(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	fields := core.Fields{"tags": []any{"a"}}
	require.NoError(t, s.Put(ctx, core.KindChild, core.Row{ID: "1", Owner: "u", Fields: fields}))
	fields["tags"].([]any)[0] = "mutated"

	got, err := s.Get(ctx, core.KindChild, core.Key{Owner: "u", ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, got.Fields["tags"])

	got.Fields["tags"] = "changed"
	again, err := s.Get(ctx, core.KindChild, core.Key{Owner: "u", ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, again.Fields["tags"])
}

func TestStore_CountsScans(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	assert.Equal(t, int64(0), s.Scans())

	seq := s.Scan(ctx, core.KindChild, core.Filter{})
	assert.Equal(t, int64(0), s.Scans(), "building the sequence must not scan")

	for range seq {
	}
	assert.Equal(t, int64(1), s.Scans())
}

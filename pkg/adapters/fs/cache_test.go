package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/fieldbook/pkg/core"
)

func TestCache_Load(t *testing.T) {
	t.Run("Starts Empty if File Missing", func(t *testing.T) {
		c := newCache(t.TempDir(), ".cache")
		require.NoError(t, c.Load())
		assert.Equal(t, 0, c.Len())
	})

	t.Run("Loads Valid JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, ".cache"), 0755))
		content := `{"version":1,"entries":{"child/u/1.json":{"kind":"child","owner":"u","id":"1","seq":4}}}`
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".cache", "index.json"), []byte(content), 0644))

		c := newCache(tmpDir, ".cache")
		require.NoError(t, c.Load())
		assert.Equal(t, 1, c.Len())
		assert.Equal(t, int64(4), c.MaxSeq(core.KindChild))
		assert.Equal(t, int64(0), c.MaxSeq(core.KindEnquiry))
	})

	t.Run("Resets on Corrupted JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, ".cache"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".cache", "index.json"), []byte("{ invalid json"), 0644))

		c := newCache(tmpDir, ".cache")
		require.NoError(t, c.Load())
		assert.Equal(t, 0, c.Len())
	})
}

func TestCache_Save(t *testing.T) {
	t.Run("Does Not Save if Not Dirty", func(t *testing.T) {
		c := newCache(t.TempDir(), ".cache")
		require.NoError(t, c.Save())
		_, err := os.Stat(c.Path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("Saves if Dirty", func(t *testing.T) {
		c := newCache(t.TempDir(), ".cache")
		c.Set("child/u/foo.json", &indexEntry{Kind: core.KindChild, ID: "foo"})
		require.NoError(t, c.Save())

		_, err := os.Stat(c.Path)
		require.NoError(t, err)
		assert.False(t, c.index.dirty)
	})
}

func TestCache_Get_Set(t *testing.T) {
	c := newCache(t.TempDir(), ".fieldbook")
	now := time.Now().Truncate(time.Second)
	c.Set("child/u/test.json", &indexEntry{ID: "test", LastModified: now, Size: 10})

	got, hit := c.Get("child/u/test.json", now, 10)
	require.True(t, hit)
	assert.Equal(t, "test", got.ID)

	_, hit = c.Get("child/u/test.json", now.Add(time.Hour), 10)
	assert.False(t, hit, "mtime mismatch")

	_, hit = c.Get("child/u/test.json", now, 11)
	assert.False(t, hit, "size mismatch")

	_, hit = c.Get("child/u/ghost.json", now, 10)
	assert.False(t, hit)
}

func TestCache_Prune(t *testing.T) {
	c := newCache(t.TempDir(), ".fieldbook")
	c.Set("child/u/keep.json", &indexEntry{Kind: core.KindChild, ID: "keep"})
	c.Set("child/u/drop.json", &indexEntry{Kind: core.KindChild, ID: "drop"})
	c.Set("enquiry/u/other.json", &indexEntry{Kind: core.KindEnquiry, ID: "other"})
	c.index.dirty = false

	c.Prune(core.KindChild, map[string]bool{"child/u/keep.json": true})

	assert.Contains(t, c.index.Entries, "child/u/keep.json")
	assert.NotContains(t, c.index.Entries, "child/u/drop.json")
	assert.Contains(t, c.index.Entries, "enquiry/u/other.json", "other kinds are untouched")
	assert.True(t, c.index.dirty)
}

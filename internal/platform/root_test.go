package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRoot(t *testing.T) {
	// base/
	//   repo/ (fieldbook.yaml)
	//     subdir/nested/
	//   store/ (.fieldbook/)
	//     child/
	//   decoy/ (.fieldbook file, not a directory)
	//   empty/
	base := t.TempDir()
	repo := filepath.Join(base, "repo")
	nested := filepath.Join(repo, "subdir", "nested")
	store := filepath.Join(base, "store")
	storeSub := filepath.Join(store, "child")
	decoy := filepath.Join(base, "decoy")
	empty := filepath.Join(base, "empty")

	for _, d := range []string{nested, storeSub, decoy, empty} {
		require.NoError(t, os.MkdirAll(d, 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(repo, ConfigFile), []byte("user:\n  name: worker1\n"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(store, ".fieldbook"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(decoy, ".fieldbook"), nil, 0644))

	tests := []struct {
		name  string
		start string
		want  string
	}{
		{"Start At Root", repo, repo},
		{"Start Nested Deeply", nested, repo},
		{"Store Directory Marker", storeSub, store},
		{"Marker File Is Not A Store Directory", decoy, ""},
		{"No Root Found", empty, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindRoot(tt.start)
			if tt.want == "" {
				// t.TempDir lives under os.TempDir, which holds no markers.
				assert.ErrorIs(t, err, ErrNoRoot)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Clean(tt.want), filepath.Clean(got))
		})
	}
}

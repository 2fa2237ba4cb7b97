package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackings(t *testing.T) map[string]func(t *testing.T) Backing {
	return map[string]func(t *testing.T) Backing{
		"file": func(t *testing.T) Backing {
			return NewFileBacking(filepath.Join(t.TempDir(), "cache", "state.json"))
		},
		"memory": func(t *testing.T) Backing {
			return NewMemoryBacking(nil)
		},
		"bolt": func(t *testing.T) Backing {
			b, err := NewBoltBacking(filepath.Join(t.TempDir(), "state.db"))
			require.NoError(t, err)
			t.Cleanup(func() { b.Close() })
			return b
		},
	}
}

func TestDocumentTitleStore_Backings(t *testing.T) {
	for name, build := range newBackings(t) {
		t.Run(name, func(t *testing.T) {
			store := NewDocumentTitleStore(build(t), nil)

			assert.Equal(t, "", store.LoadTitle("V", "news"))

			store.SaveTitle("V", "news", "First")
			store.SaveTitle("G", "tech", "Second")
			store.SaveTitle("G", "politics", "Third")
			store.SaveTitle("G", "tech", "Fourth")

			assert.Equal(t, "First", store.LoadTitle("V", "news"))
			assert.Equal(t, "Fourth", store.LoadTitle("G", "tech"))
			assert.Equal(t, "Third", store.LoadTitle("G", "politics"))

			doc, err := store.Snapshot()
			require.NoError(t, err)
			assert.Equal(t, Document{
				"V": {"news": "First"},
				"G": {"tech": "Fourth", "politics": "Third"},
			}, doc)
		})
	}
}

func TestFileBacking_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	backing := NewFileBacking(path)
	assert.Equal(t, path, backing.Path())
	store := NewDocumentTitleStore(backing, nil)

	store.SaveTitle("SF", "criminal", `Title with "quotes" & <tags>`)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]map[string]string
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, `Title with "quotes" & <tags>`, raw["SF"]["criminal"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestFileBacking_DegradesToEmpty(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed json", content: `{"V": {"news": `},
		{name: "wrong shape", content: `["not", "an", "object"]`},
		{name: "empty file", content: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			store := NewDocumentTitleStore(NewFileBacking(path), nil)
			assert.Equal(t, "", store.LoadTitle("V", "news"))

			// a save over a corrupt document starts from {}
			store.SaveTitle("V", "news", "Recovered")
			assert.Equal(t, "Recovered", store.LoadTitle("V", "news"))
		})
	}
}

func TestFileBacking_SaveFailureIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// parent "directory" is a regular file, so every write fails
	store := NewDocumentTitleStore(NewFileBacking(filepath.Join(blocker, "state.json")), nil)

	assert.NotPanics(t, func() { store.SaveTitle("V", "news", "Lost") })
	assert.Equal(t, "", store.LoadTitle("V", "news"))
}

func TestMemoryBacking_SaveError(t *testing.T) {
	backing := NewMemoryBacking(Document{"V": {"news": "Kept"}})
	backing.SaveErr = errors.New("disk full")
	store := NewDocumentTitleStore(backing, nil)

	store.SaveTitle("V", "news", "Dropped")
	assert.Equal(t, "Kept", store.LoadTitle("V", "news"))
}

func TestMemoryBacking_IsolatesCopies(t *testing.T) {
	seed := Document{"V": {"news": "A"}}
	backing := NewMemoryBacking(seed)
	seed["V"]["news"] = "mutated"

	doc, err := backing.Load()
	require.NoError(t, err)
	assert.Equal(t, "A", doc.Get("V", "news"))
}

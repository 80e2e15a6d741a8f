package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/foomo/catalogserver/catalog"
	"github.com/foomo/catalogserver/pkg/repo/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testClock() func() time.Time {
	var n atomic.Int64
	return func() time.Time {
		return time.UnixMilli(1_000_000 + n.Add(1))
	}
}

func NewTestRepo(t *testing.T, url, varDir string, opts ...Option) *Repo {
	t.Helper()
	l := zaptest.NewLogger(t)
	h, err := NewHistory(l, HistoryWithHistoryLimit(2), HistoryWithHistoryDir(varDir))
	require.NoError(t, err)
	r := New(l, url, h, append([]Option{WithClock(testClock())}, opts...)...)
	t.Cleanup(func() {
		_ = r.Close()
	})
	return r
}

func getTestRepo(t *testing.T, name string) *Repo {
	t.Helper()
	mockServer, varDir := mock.GetMockData(t)
	r := NewTestRepo(t, mockServer.URL+"/"+name, varDir)
	_, err := r.Load(t.Context())
	require.NoError(t, err)
	return r
}

func TestLoadDocument(t *testing.T) {
	r := getTestRepo(t, "catalog-ok.json")
	require.True(t, r.Loaded())

	tree := r.Snapshot()
	require.NotNil(t, tree)
	assert.True(t, tree.IsCategory())
	assert.Len(t, tree.Children, 3)
	assert.Equal(t, catalog.Stats{Categories: 4, Leaves: 2}, r.Stats())
}

func TestLoadEmptyCatalog(t *testing.T) {
	r := getTestRepo(t, "catalog-empty.json")
	tree := r.Snapshot()
	require.NotNil(t, tree)
	assert.Empty(t, tree.Children)
}

func TestLoad404(t *testing.T) {
	mockServer, varDir := mock.GetMockData(t)
	r := NewTestRepo(t, mockServer.URL+"/catalog-no-have.json", varDir)

	_, err := r.Load(t.Context())
	require.ErrorIs(t, err, ErrLoadFailure)
	assert.False(t, r.Loaded())
}

func TestLoadBrokenCatalog(t *testing.T) {
	mockServer, varDir := mock.GetMockData(t)
	r := NewTestRepo(t, mockServer.URL+"/catalog-broken.json", varDir)

	_, err := r.Load(t.Context())
	require.ErrorIs(t, err, ErrLoadFailure)
	assert.Contains(t, err.Error(), "document")
}

func TestLoadNoSource(t *testing.T) {
	r := NewTestRepo(t, "", t.TempDir())
	_, err := r.Load(t.Context())
	require.ErrorIs(t, err, ErrLoadFailure)
}

func TestLoadPriority(t *testing.T) {
	mockServer, varDir := mock.GetMockData(t)
	url := mockServer.URL + "/catalog-ok.json"

	// preloaded wins over the document
	r := NewTestRepo(t, url, varDir, WithPreloaded(mock.ReadCatalog(t, "catalog-empty.json")))
	tree, err := r.Load(t.Context())
	require.NoError(t, err)
	assert.Empty(t, tree.Children)

	// a persisted snapshot wins over everything
	_, err = r.AddEntry(t.Context(), "src/custom/glow.js", "class Glow extends Engine.Scene {}", "")
	require.NoError(t, err)

	next := NewTestRepo(t, url, varDir, WithPreloaded(mock.ReadCatalog(t, "catalog-empty.json")))
	tree, err = next.Load(t.Context())
	require.NoError(t, err)
	require.Len(t, next.ListUserAdded(), 1)
	assert.Len(t, tree.Children, 1)
}

func TestLoadCorruptSnapshotFallsBack(t *testing.T) {
	mockServer, varDir := mock.GetMockData(t)
	require.NoError(t, os.WriteFile(varDir+"/"+CurrentKey, []byte("{nope"), 0600))

	r := NewTestRepo(t, mockServer.URL+"/catalog-ok.json", varDir)
	tree, err := r.Load(t.Context())
	require.NoError(t, err)
	assert.Len(t, tree.Children, 3)
}

func TestSaveNotLoaded(t *testing.T) {
	r := NewTestRepo(t, "", t.TempDir())
	require.ErrorIs(t, r.Save(t.Context()), ErrNotLoaded)

	_, err := r.ExportSnapshot()
	require.ErrorIs(t, err, ErrNotLoaded)
}

func TestSave(t *testing.T) {
	r := getTestRepo(t, "catalog-ok.json")
	require.NoError(t, r.Save(t.Context()))

	data, err := r.history.GetCurrent(t.Context())
	require.NoError(t, err)
	saved, err := catalog.ParseTree(data)
	require.NoError(t, err)
	assert.Equal(t, r.Snapshot(), saved)
}

func TestAddEntryScenario(t *testing.T) {
	r := getTestRepo(t, "catalog-empty.json")

	tree, err := r.AddEntry(t.Context(), "src/custom/glow.js", "class Glow extends Engine.Scene {}", "")
	require.NoError(t, err)

	require.Len(t, tree.Children, 1)
	src := tree.Children[0]
	assert.Equal(t, "src", src.Name)
	assert.True(t, src.IsCategory())
	require.Len(t, src.Children, 1)
	custom := src.Children[0]
	assert.Equal(t, "custom", custom.Name)
	assert.Equal(t, "src\\custom", custom.Path)
	require.Len(t, custom.Children, 1)

	glow := custom.Children[0]
	assert.True(t, glow.IsLeaf())
	assert.Equal(t, "Glow", glow.Name)
	assert.Equal(t, "src/custom/glow.js", glow.Path)
	assert.True(t, glow.UserAdded)
	require.NotNil(t, glow.SceneInfo)
	assert.True(t, glow.SceneInfo.HasScene)
	require.NotNil(t, glow.SceneInfo.ClassName)
	assert.Equal(t, "Glow", *glow.SceneInfo.ClassName)

	// the returned tree is a copy
	tree.Children = nil
	assert.Len(t, r.Snapshot().Children, 1)
}

func TestAddEntryUpsert(t *testing.T) {
	r := getTestRepo(t, "catalog-empty.json")

	_, err := r.AddEntry(t.Context(), "a/b/file.js", "class One extends Engine.Scene {}", "File")
	require.NoError(t, err)
	first := r.ListUserAdded()[0]

	tree, err := r.AddEntry(t.Context(), "a/b/file.js", "/* no scene here */", "File")
	require.NoError(t, err)

	require.Len(t, tree.Children, 1, "exactly one a")
	require.Len(t, tree.Children[0].Children, 1, "exactly one b")
	require.Len(t, tree.Children[0].Children[0].Children, 1, "exactly one leaf")

	second := r.ListUserAdded()
	require.Len(t, second, 1)
	assert.Greater(t, second[0].CreatedAtMs, first.CreatedAtMs)
	assert.True(t, first.SceneInfo.HasScene)
	assert.False(t, second[0].SceneInfo.HasScene)
}

func TestAddEntryMixedSeparators(t *testing.T) {
	r := getTestRepo(t, "catalog-empty.json")

	_, err := r.AddEntry(t.Context(), "src/custom/a.js", "", "")
	require.NoError(t, err)
	tree, err := r.AddEntry(t.Context(), "src\\custom\\b.js", "", "")
	require.NoError(t, err)

	require.Len(t, tree.Children, 1)
	require.Len(t, tree.Children[0].Children, 1)
	custom := tree.Children[0].Children[0]
	require.Len(t, custom.Children, 2)
	assert.Equal(t, "src/custom/b.js", custom.Children[1].Path)
	assert.Equal(t, "b", custom.Children[1].Name)

	removed, err := r.RemoveEntry(t.Context(), "src\\custom\\b.js")
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestAddEntryIntoExistingCategory(t *testing.T) {
	r := getTestRepo(t, "catalog-ok.json")

	tree, err := r.AddEntry(t.Context(), "filters/glow.js", "", "")
	require.NoError(t, err)
	require.Len(t, tree.Children, 3)
	filters := tree.Children[1]
	require.Len(t, filters.Children, 2)
	assert.Equal(t, "filters/glow.js", filters.Children[1].Path)

	// categories are matched by name on the path from the root
	tree, err = r.AddEntry(t.Context(), "src/filters/glow.js", "", "")
	require.NoError(t, err)
	require.Len(t, tree.Children, 4)
	assert.Equal(t, "src", tree.Children[3].Name)
}

func TestAddEntryLoadsFirst(t *testing.T) {
	mockServer, varDir := mock.GetMockData(t)
	r := NewTestRepo(t, mockServer.URL+"/catalog-ok.json", varDir)
	require.False(t, r.Loaded())

	tree, err := r.AddEntry(t.Context(), "x.js", "", "")
	require.NoError(t, err)
	assert.True(t, r.Loaded())
	assert.Len(t, tree.Children, 4)
}

func TestAddEntryLoadFailure(t *testing.T) {
	mockServer, varDir := mock.GetMockData(t)
	r := NewTestRepo(t, mockServer.URL+"/catalog-no-have.json", varDir)

	_, err := r.AddEntry(t.Context(), "x.js", "", "")
	require.ErrorIs(t, err, ErrLoadFailure)
}

func TestAddEntryInvalidPath(t *testing.T) {
	r := getTestRepo(t, "catalog-empty.json")
	for _, path := range []string{"", "/", "\\//"} {
		_, err := r.AddEntry(t.Context(), path, "", "")
		require.ErrorIs(t, err, ErrInvalidPath)
	}
}

func TestRemoveEntryScenario(t *testing.T) {
	r := getTestRepo(t, "catalog-empty.json")
	_, err := r.AddEntry(t.Context(), "src/custom/glow.js", "class Glow extends Engine.Scene {}", "")
	require.NoError(t, err)

	removed, err := r.RemoveEntry(t.Context(), "src/custom/glow.js")
	require.NoError(t, err)
	assert.True(t, removed)

	tree := r.Snapshot()
	require.Len(t, tree.Children, 1)
	require.Len(t, tree.Children[0].Children, 1)
	custom := tree.Children[0].Children[0]
	assert.Equal(t, "custom", custom.Name)
	assert.True(t, custom.IsCategory())
	assert.Empty(t, custom.Children)
}

func TestRemovalCompleteness(t *testing.T) {
	r := getTestRepo(t, "catalog-ok.json")
	paths := []string{"src/custom/a.js", "src/custom/b.js", "other/deep/c.js"}
	for _, p := range paths {
		_, err := r.AddEntry(t.Context(), p, "", "")
		require.NoError(t, err)
	}

	for _, p := range paths {
		removed, err := r.RemoveEntry(t.Context(), p)
		require.NoError(t, err)
		assert.True(t, removed, p)

		assert.Empty(t, r.Search(p))
		for _, leaf := range r.ListUserAdded() {
			assert.NotEqual(t, p, leaf.Path)
		}

		removed, err = r.RemoveEntry(t.Context(), p)
		require.NoError(t, err)
		assert.False(t, removed, p)
	}
	assert.Empty(t, r.ListUserAdded())
	assert.Equal(t, 2, r.Stats().Leaves)
}

func TestRemoveSeedEntry(t *testing.T) {
	r := getTestRepo(t, "catalog-ok.json")
	removed, err := r.RemoveEntry(t.Context(), "src/filters/shadow.js")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, r.Search("shadow"))
}

func TestSearch(t *testing.T) {
	r := getTestRepo(t, "catalog-ok.json")

	results := r.Search("rain")
	require.Len(t, results, 1)
	assert.Equal(t, "Thalion Rain", results[0].Name)
	assert.Equal(t, results, r.Search("RAIN"))

	assert.Empty(t, r.Search("database"), "categories are never returned")
}

func TestSearchNotLoaded(t *testing.T) {
	r := NewTestRepo(t, "", t.TempDir())
	assert.Empty(t, r.Search("rain"))
	assert.Empty(t, r.ListUserAdded())
	assert.Nil(t, r.Snapshot())
}

func TestListUserAddedIsolation(t *testing.T) {
	r := getTestRepo(t, "catalog-ok.json")
	assert.Empty(t, r.ListUserAdded())

	// passing a seed leaf through AddEntry updates it in place, it stays a seed leaf
	_, err := r.AddEntry(t.Context(), "filters/shadow.js", "/* Shadow */", "shadow")
	require.NoError(t, err)
	assert.Empty(t, r.ListUserAdded())

	_, err = r.AddEntry(t.Context(), "src/custom/glow.js", "", "")
	require.NoError(t, err)
	leaves := r.ListUserAdded()
	require.Len(t, leaves, 1)
	assert.Equal(t, "src/custom/glow.js", leaves[0].Path)
}

func TestExportImportRoundTrip(t *testing.T) {
	r := getTestRepo(t, "catalog-ok.json")
	_, err := r.AddEntry(t.Context(), "src/custom/glow.js", "class Glow extends Engine.Scene {}", "")
	require.NoError(t, err)

	before := r.Snapshot()
	text, err := r.ExportSnapshot()
	require.NoError(t, err)

	require.NoError(t, r.ImportSnapshot(t.Context(), text))
	assert.Equal(t, before, r.Snapshot())
}

func TestImportMalformedKeepsTree(t *testing.T) {
	r := getTestRepo(t, "catalog-ok.json")
	before := r.Snapshot()

	var events []catalog.Event
	r.OnChange(func(e catalog.Event) {
		events = append(events, e)
	})

	for _, text := range []string{"", "{", "null", `{"path": "a.js", "name": "a"}`} {
		err := r.ImportSnapshot(t.Context(), text)
		require.ErrorIs(t, err, ErrParseFailure, text)
	}
	assert.Equal(t, before, r.Snapshot())
	assert.Empty(t, events)
}

func TestImportReplacesAndPersists(t *testing.T) {
	mockServer, varDir := mock.GetMockData(t)
	r := NewTestRepo(t, mockServer.URL+"/catalog-ok.json", varDir)

	require.NoError(t, r.ImportSnapshot(t.Context(), string(mock.ReadCatalog(t, "catalog-empty.json"))))
	assert.True(t, r.Loaded())
	assert.Empty(t, r.Snapshot().Children)

	next := NewTestRepo(t, mockServer.URL+"/catalog-ok.json", varDir)
	tree, err := next.Load(t.Context())
	require.NoError(t, err)
	assert.Empty(t, tree.Children)
}

func TestReset(t *testing.T) {
	mockServer, varDir := mock.GetMockData(t)
	url := mockServer.URL + "/catalog-ok.json"
	r := NewTestRepo(t, url, varDir)

	_, err := r.AddEntry(t.Context(), "src/custom/glow.js", "", "")
	require.NoError(t, err)
	require.Len(t, r.ListUserAdded(), 1)

	require.NoError(t, r.Reset(t.Context()))
	assert.Empty(t, r.ListUserAdded())
	assert.Len(t, r.Snapshot().Children, 3)

	_, err = r.history.GetCurrent(t.Context())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestResetFailureKeepsTree(t *testing.T) {
	mockServer, varDir := mock.GetMockData(t)
	r := NewTestRepo(t, mockServer.URL+"/catalog-no-have.json", varDir,
		WithPreloaded(mock.ReadCatalog(t, "catalog-ok.json")),
	)
	_, err := r.Load(t.Context())
	require.NoError(t, err)

	require.ErrorIs(t, r.Reset(t.Context()), ErrLoadFailure)
	assert.Len(t, r.Snapshot().Children, 3)
}

func TestNotifications(t *testing.T) {
	r := getTestRepo(t, "catalog-ok.json")

	var events []catalog.Event
	r.OnChange(func(e catalog.Event) {
		// reading from a handler must not deadlock
		_ = r.Snapshot()
		events = append(events, e)
	})

	_, err := r.AddEntry(t.Context(), "src/custom/glow.js", "", "Shiny")
	require.NoError(t, err)
	_, err = r.RemoveEntry(t.Context(), "does/not/exist.js")
	require.NoError(t, err)
	_, err = r.RemoveEntry(t.Context(), "src/custom/glow.js")
	require.NoError(t, err)
	text, err := r.ExportSnapshot()
	require.NoError(t, err)
	require.NoError(t, r.ImportSnapshot(t.Context(), text))
	require.NoError(t, r.Reset(t.Context()))

	require.Len(t, events, 4)
	assert.Equal(t, catalog.Event{
		Operation: catalog.OperationAdd,
		Path:      "src/custom/glow.js",
		Extra:     map[string]interface{}{"displayName": "Shiny"},
	}, events[0])
	assert.Equal(t, catalog.OperationRemove, events[1].Operation)
	assert.Equal(t, "src/custom/glow.js", events[1].Path)
	assert.Equal(t, catalog.OperationImport, events[2].Operation)
	assert.Equal(t, catalog.OperationReset, events[3].Operation)
}

func TestMutationFromHandler(t *testing.T) {
	r := getTestRepo(t, "catalog-empty.json")

	var followed atomic.Bool
	r.OnChange(func(e catalog.Event) {
		if followed.CompareAndSwap(false, true) {
			_, err := r.AddEntry(context.Background(), "follow/up.js", "", "")
			assert.NoError(t, err)
		}
	})

	_, err := r.AddEntry(t.Context(), "first.js", "", "")
	require.NoError(t, err)
	assert.Len(t, r.ListUserAdded(), 2)
}

type failingStorage struct {
	Storage
}

func (f *failingStorage) Write(ctx context.Context, key string, data []byte) error {
	return errors.New("disk full")
}

func TestPersistFailure(t *testing.T) {
	mockServer, varDir := mock.GetMockData(t)
	fs, err := NewFilesystemStorage(varDir)
	require.NoError(t, err)

	l := zaptest.NewLogger(t)
	h, err := NewHistory(l, HistoryWithStorage(&failingStorage{Storage: fs}))
	require.NoError(t, err)
	r := New(l, mockServer.URL+"/catalog-empty.json", h)

	var events []catalog.Event
	r.OnChange(func(e catalog.Event) {
		events = append(events, e)
	})

	_, err = r.AddEntry(t.Context(), "src/custom/glow.js", "", "")
	require.ErrorIs(t, err, ErrPersistFailure)
	assert.Contains(t, err.Error(), "disk full")

	// no rollback: the in-memory tree is ahead of the persisted copy
	assert.Len(t, r.ListUserAdded(), 1)
	assert.Empty(t, events)

	require.ErrorIs(t, r.Save(t.Context()), ErrPersistFailure)
}

func TestConcurrentMutations(t *testing.T) {
	mockServer, varDir := mock.GetMockData(t)
	url := mockServer.URL + "/catalog-empty.json"
	r := NewTestRepo(t, url, varDir)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.AddEntry(t.Context(), fmt.Sprintf("src/custom/file-%d.js", i), "", "")
			assert.NoError(t, err)
			_ = r.Search("file")
		}(i)
	}
	wg.Wait()

	tree := r.Snapshot()
	require.Len(t, tree.Children, 1, "one src")
	require.Len(t, tree.Children[0].Children, 1, "one custom")
	assert.Len(t, tree.Children[0].Children[0].Children, 20)

	// the persisted snapshot holds every write
	next := NewTestRepo(t, url, varDir)
	_, err := next.Load(t.Context())
	require.NoError(t, err)
	assert.Len(t, next.ListUserAdded(), 20)
}

func TestConcurrentNotifications(t *testing.T) {
	r := getTestRepo(t, "catalog-empty.json")

	var (
		mu   sync.Mutex
		seen = map[string]int{}
	)
	r.OnChange(func(e catalog.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen[e.Path]++
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.AddEntry(t.Context(), fmt.Sprintf("src/custom/file-%d.js", i), "", "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// order across writers is unspecified, every event arrives exactly once
	require.Len(t, seen, 20)
	for i := 0; i < 20; i++ {
		assert.Equal(t, 1, seen[fmt.Sprintf("src/custom/file-%d.js", i)])
	}
}

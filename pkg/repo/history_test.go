package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testHistory(t *testing.T, opts ...HistoryOption) *History {
	t.Helper()
	l := zaptest.NewLogger(t)
	h, err := NewHistory(l, append([]HistoryOption{HistoryWithHistoryLimit(2), HistoryWithHistoryDir(t.TempDir())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = h.Close()
	})
	return h
}

func TestHistoryCurrent(t *testing.T) {
	ctx := context.Background()
	h := testHistory(t)

	_, err := h.GetCurrent(ctx)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, h.Add(ctx, []byte(`{"path":""}`)))
	data, err := h.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"path":""}`, string(data))
}

func TestHistoryClearCurrent(t *testing.T) {
	ctx := context.Background()
	h := testHistory(t)

	require.NoError(t, h.ClearCurrent(ctx), "clearing an empty slot")
	require.NoError(t, h.Add(ctx, []byte("{}")))
	require.NoError(t, h.ClearCurrent(ctx))

	_, err := h.GetCurrent(ctx)
	require.ErrorIs(t, err, os.ErrNotExist)

	backups, err := h.getHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, backups, 1, "backups survive a clear")
}

func TestHistoryCleanup(t *testing.T) {
	ctx := context.Background()
	h := testHistory(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, h.Add(ctx, []byte(fmt.Sprint(i))))
		time.Sleep(time.Millisecond * 2)
	}

	files, err := h.getHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	data, err := h.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "9", string(data))
}

func TestHistoryOrder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	for _, name := range []string{
		"catalog-2025-07-29T10:00:00Z.json",
		"catalog-2025-07-31T10:00:00Z.json",
		"catalog-2025-07-30T10:00:00Z.json",
		CurrentKey,
		"catalog-notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0600))
	}
	h := testHistory(t, HistoryWithHistoryDir(dir))

	files, err := h.getHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"catalog-2025-07-31T10:00:00Z.json",
		"catalog-2025-07-30T10:00:00Z.json",
		"catalog-2025-07-29T10:00:00Z.json",
	}, files)

	files, err = h.getFilesForCleanup(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"catalog-2025-07-29T10:00:00Z.json"}, files)
}

func TestHistoryWithBlobStorage(t *testing.T) {
	ctx := context.Background()
	storage := newTestBlobStorage(t, "catalogs")
	h := testHistory(t, HistoryWithStorage(storage))

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Add(ctx, []byte(fmt.Sprintf(`{"n":%d}`, i))))
		time.Sleep(time.Millisecond * 2)
	}

	data, err := h.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"n":4}`, string(data))

	files, err := h.getHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

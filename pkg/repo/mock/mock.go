package mock

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"runtime"
	"testing"
)

// GetMockData serves the json files next to this file and returns a fresh
// history dir
func GetMockData(tb testing.TB) (*httptest.Server, string) {
	tb.Helper()
	server := httptest.NewServer(http.FileServer(http.Dir(Dir())))
	tb.Cleanup(server.Close)
	return server, tb.TempDir()
}

// Dir directory of the mock catalogs
func Dir() string {
	_, filename, _, _ := runtime.Caller(0)
	return path.Dir(filename)
}

// ReadCatalog contents of a mock catalog
func ReadCatalog(tb testing.TB, name string) []byte {
	tb.Helper()
	data, err := os.ReadFile(path.Join(Dir(), name))
	if err != nil {
		tb.Fatal(err)
	}
	return data
}

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/foomo/catalogserver/catalog"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrFetchFailure the content could not be retrieved
	ErrFetchFailure = errors.New("fetch failure")
	errLocalFiles   = errors.New("only http(s) locations are allowed")
)

type (
	// Registrar is the part of the store used to register fetched content
	Registrar interface {
		AddEntry(ctx context.Context, path, content, displayName string) (*catalog.Node, error)
	}
	// Fetcher loads example sources from http(s) urls and, if enabled, the
	// local file system
	Fetcher struct {
		l          *zap.Logger
		httpClient *http.Client
		maxSize    int64
		localFiles bool
	}
	Option func(*Fetcher)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func New(l *zap.Logger, opts ...Option) *Fetcher {
	inst := &Fetcher{
		l:          l.Named("fetch"),
		httpClient: http.DefaultClient,
		maxSize:    8 << 20,
	}
	for _, opt := range opts {
		opt(inst)
	}
	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func WithHTTPClient(v *http.Client) Option {
	return func(o *Fetcher) {
		o.httpClient = v
	}
}

// WithMaxSize upper bound for a fetched source in bytes
func WithMaxSize(v int64) Option {
	return func(o *Fetcher) {
		o.maxSize = v
	}
}

// WithLocalFiles allows plain paths and file:// locations. Never enable it
// for a fetcher reachable by remote callers.
func WithLocalFiles(v bool) Option {
	return func(o *Fetcher) {
		o.localFiles = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Fetch returns the raw text behind location
func (f *Fetcher) Fetch(ctx context.Context, location string) (string, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case isRemote(location):
		data, err = f.fetchRemote(ctx, location)
	case f.localFiles:
		data, err = f.fetchLocal(location)
	default:
		f.l.Warn("rejected local location", zap.String("location", location))
		return "", fmt.Errorf("%w: %w", ErrFetchFailure, errLocalFiles)
	}
	if err != nil {
		f.l.Warn("could not fetch content", zap.String("location", location), zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrFetchFailure, err)
	}
	f.l.Debug("fetched content", zap.String("location", location), zap.Int("length", len(data)))
	return string(data), nil
}

// Register fetches location and adds it to the store under path
func (f *Fetcher) Register(ctx context.Context, store Registrar, path, location, displayName string) (*catalog.Node, error) {
	content, err := f.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	return store.AddEntry(ctx, path, content, displayName)
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (f *Fetcher) fetchRemote(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	response, err := f.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get content")
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, errors.Errorf("bad response code %q want %d", response.Status, http.StatusOK)
	}
	return f.readAll(response.Body)
}

func (f *Fetcher) fetchLocal(location string) ([]byte, error) {
	file, err := os.Open(strings.TrimPrefix(location, "file://"))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return f.readAll(file)
}

func (f *Fetcher) readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read content")
	}
	if int64(len(data)) > f.maxSize {
		return nil, errors.Errorf("content exceeds %d bytes", f.maxSize)
	}
	return data, nil
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

package repo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/foomo/catalogserver/catalog"
	"github.com/foomo/catalogserver/pkg/metrics"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Source where a loaded catalog came from
type Source string

const (
	SourceSnapshot  Source = "snapshot"
	SourcePreloaded Source = "preloaded"
	SourceDocument  Source = "document"
)

// load tries every source in priority order, the caller holds writeLock
func (r *Repo) load(ctx context.Context) error {
	var (
		l     = r.l.Named("load")
		start = time.Now()
		errs  error
	)

	for _, source := range []Source{SourceSnapshot, SourcePreloaded, SourceDocument} {
		tree, err := r.loadFrom(ctx, source)
		if err != nil {
			l.Warn("could not load catalog", zap.String("source", string(source)), zap.Error(err))
			errs = multierr.Append(errs, errors.Wrap(err, string(source)))
			continue
		}
		if tree == nil {
			l.Debug("source not available", zap.String("source", string(source)))
			continue
		}

		r.setTree(tree)
		metrics.LoadCounter.WithLabelValues(string(source)).Inc()
		metrics.LoadDuration.WithLabelValues(string(source)).Observe(time.Since(start).Seconds())
		l.Info("loaded catalog",
			zap.String("source", string(source)),
			zap.Int("leaves", tree.Stats().Leaves),
		)
		return nil
	}

	metrics.LoadFailedCounter.WithLabelValues().Inc()
	if errs == nil {
		errs = errors.New("no source configured")
	}
	return fmt.Errorf("%w: %w", ErrLoadFailure, errs)
}

// loadFrom returns nil without error if the source has nothing to offer
func (r *Repo) loadFrom(ctx context.Context, source Source) (*catalog.Node, error) {
	switch source {
	case SourceSnapshot:
		data, err := r.history.GetCurrent(ctx)
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		} else if err != nil {
			return nil, err
		}
		return catalog.ParseTree(data)
	case SourcePreloaded:
		if len(r.preloaded) == 0 {
			return nil, nil
		}
		return catalog.ParseTree(r.preloaded)
	case SourceDocument:
		if r.url == "" {
			return nil, nil
		}
		return r.fetchDocument(ctx)
	default:
		return nil, errors.Errorf("unknown source %q", source)
	}
}

// fetchDocument gets and decodes the catalog document
func (r *Repo) fetchDocument(ctx context.Context) (*catalog.Node, error) {
	if r.url == "" {
		return nil, errors.New("no catalog document url configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create catalog request")
	}
	response, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get catalog")
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, errors.Errorf("bad response code from catalog origin %q want %d", response.Status, http.StatusOK)
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read catalog")
	}
	r.l.Debug("fetched catalog document", zap.String("url", r.url), zap.Int("length", len(data)))
	return catalog.ParseTree(data)
}

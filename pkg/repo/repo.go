package repo

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foomo/catalogserver/catalog"
	"github.com/foomo/catalogserver/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repo the catalog store. It owns the tree; every mutation is serialized,
// persisted into the history slot and announced through the change callback.
type (
	Repo struct {
		l          *zap.Logger
		url        string
		preloaded  []byte
		history    *History
		httpClient *http.Client
		now        func() time.Time
		onChange   func(catalog.Event)
		onChangeMu sync.RWMutex
		loaded     *atomic.Bool
		// writeLock serializes load, save and every mutation
		writeLock sync.Mutex
		tree      *catalog.Node
		treeLock  sync.RWMutex
	}
	Option func(*Repo)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func New(l *zap.Logger, url string, history *History, opts ...Option) *Repo {
	inst := &Repo{
		l:          l.Named("repo"),
		url:        url,
		history:    history,
		httpClient: http.DefaultClient,
		now:        time.Now,
		loaded:     &atomic.Bool{},
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
	return func(o *Repo) {
		o.httpClient = v
	}
}

// WithPreloaded a serialized catalog supplied by the host, used when there
// is no persisted snapshot
func WithPreloaded(v []byte) Option {
	return func(o *Repo) {
		o.preloaded = v
	}
}

func WithClock(v func() time.Time) Option {
	return func(o *Repo) {
		o.now = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Getter
// ------------------------------------------------------------------------------------------------

func (r *Repo) Loaded() bool {
	return r.loaded.Load()
}

// Snapshot deep copy of the current tree, nil if nothing is loaded
func (r *Repo) Snapshot() *catalog.Node {
	r.treeLock.RLock()
	defer r.treeLock.RUnlock()
	return r.tree.Clone()
}

func (r *Repo) setTree(v *catalog.Node) {
	r.treeLock.Lock()
	defer r.treeLock.Unlock()
	r.tree = v
	r.loaded.Store(v != nil)
	if v != nil {
		metrics.LeavesGauge.WithLabelValues().Set(float64(v.Stats().Leaves))
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// OnChange registers the single change callback, called after every
// successful mutation and outside of any lock
func (r *Repo) OnChange(fn func(catalog.Event)) {
	r.onChangeMu.Lock()
	defer r.onChangeMu.Unlock()
	r.onChange = fn
}

// Load resolves the tree from the persisted snapshot, the preloaded
// snapshot or the catalog document, in that order.
func (r *Repo) Load(ctx context.Context) (*catalog.Node, error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	return r.Snapshot(), nil
}

// Save writes the current tree into the snapshot slot
func (r *Repo) Save(ctx context.Context) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()
	if !r.Loaded() {
		return ErrNotLoaded
	}
	return r.persist(ctx)
}

// AddEntry inserts or updates the leaf for path, creating missing categories.
// It returns the whole updated tree.
func (r *Repo) AddEntry(ctx context.Context, path, content, displayName string) (*catalog.Node, error) {
	tree, event, err := r.addEntry(ctx, path, content, displayName)
	r.track(catalog.OperationAdd, err)
	if err != nil {
		return nil, err
	}
	r.notify(event)
	return tree, nil
}

// RemoveEntry removes the first leaf with the given path. It returns false
// without error if there is no such leaf.
func (r *Repo) RemoveEntry(ctx context.Context, path string) (bool, error) {
	removed, err := r.removeEntry(ctx, path)
	r.track(catalog.OperationRemove, err)
	if err != nil || !removed {
		return false, err
	}
	r.notify(catalog.Event{
		Operation: catalog.OperationRemove,
		Path:      path,
		Extra:     map[string]interface{}{"removed": true},
	})
	return true, nil
}

// Search case insensitive search over leaf names, paths and scene names
func (r *Repo) Search(query string) []*catalog.Node {
	metrics.SearchRequestCounter.WithLabelValues().Inc()
	r.treeLock.RLock()
	defer r.treeLock.RUnlock()
	if r.tree == nil {
		return []*catalog.Node{}
	}
	return cloneAll(r.tree.Search(query))
}

// ListUserAdded all leaves added through AddEntry
func (r *Repo) ListUserAdded() []*catalog.Node {
	r.treeLock.RLock()
	defer r.treeLock.RUnlock()
	if r.tree == nil {
		return []*catalog.Node{}
	}
	return cloneAll(r.tree.UserAddedLeaves())
}

// Stats counts of the current tree
func (r *Repo) Stats() catalog.Stats {
	r.treeLock.RLock()
	defer r.treeLock.RUnlock()
	if r.tree == nil {
		return catalog.Stats{}
	}
	return r.tree.Stats()
}

// ExportSnapshot the whole tree as indented json
func (r *Repo) ExportSnapshot() (string, error) {
	r.treeLock.RLock()
	defer r.treeLock.RUnlock()
	if r.tree == nil {
		return "", ErrNotLoaded
	}
	data, err := catalog.Encode(r.tree, true)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ImportSnapshot replaces the whole tree. A malformed snapshot leaves the
// current tree untouched.
func (r *Repo) ImportSnapshot(ctx context.Context, text string) error {
	err := r.importSnapshot(ctx, text)
	r.track(catalog.OperationImport, err)
	if err != nil {
		return err
	}
	r.notify(catalog.Event{
		Operation: catalog.OperationImport,
		Extra:     map[string]interface{}{"imported": true},
	})
	return nil
}

// Reset drops the persisted snapshot and reloads the catalog document
func (r *Repo) Reset(ctx context.Context) error {
	err := r.reset(ctx)
	r.track(catalog.OperationReset, err)
	if err != nil {
		return err
	}
	r.notify(catalog.Event{
		Operation: catalog.OperationReset,
		Extra:     map[string]interface{}{"reset": true},
	})
	return nil
}

// Close releases the history storage
func (r *Repo) Close() error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()
	return r.history.Close()
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (r *Repo) addEntry(ctx context.Context, path, content, displayName string) (*catalog.Node, catalog.Event, error) {
	segments := catalog.SplitPath(path)
	if len(segments) == 0 {
		return nil, catalog.Event{}, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	l := r.l.With(zap.String("run_id", uuid.New().String()), zap.String("path", path))

	if !r.Loaded() {
		l.Debug("loading catalog before adding an entry")
		if err := r.load(ctx); err != nil {
			return nil, catalog.Event{}, err
		}
	}

	var (
		sceneInfo = catalog.DeriveSceneInfo(content)
		fileName  = segments[len(segments)-1]
		leafPath  = strings.Join(segments, "/")
		name      = catalog.DisplayName(fileName, sceneInfo, displayName)
		now       = r.now().UnixMilli()
		created   bool
	)

	r.treeLock.Lock()
	category := r.tree.EnsureCategories(segments[:len(segments)-1], now)
	_, created = category.UpsertLeaf(leafPath, name, sceneInfo, now)
	r.treeLock.Unlock()

	if created {
		l.Info("added entry", zap.String("name", name), zap.Bool("hasScene", sceneInfo.HasScene))
	} else {
		l.Info("updated existing entry", zap.String("name", name), zap.Bool("hasScene", sceneInfo.HasScene))
	}

	if err := r.persist(ctx); err != nil {
		return nil, catalog.Event{}, err
	}

	return r.Snapshot(), catalog.Event{
		Operation: catalog.OperationAdd,
		Path:      leafPath,
		Extra:     map[string]interface{}{"displayName": name},
	}, nil
}

func (r *Repo) removeEntry(ctx context.Context, path string) (bool, error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if !r.Loaded() {
		if err := r.load(ctx); err != nil {
			return false, err
		}
	}

	r.treeLock.Lock()
	removed := r.tree.RemoveLeaf(path)
	if normalized := strings.Join(catalog.SplitPath(path), "/"); !removed && normalized != path {
		removed = r.tree.RemoveLeaf(normalized)
	}
	r.treeLock.Unlock()

	if !removed {
		r.l.Debug("no entry to remove", zap.String("path", path))
		return false, nil
	}
	r.l.Info("removed entry", zap.String("path", path))

	if err := r.persist(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repo) importSnapshot(ctx context.Context, text string) error {
	tree, err := catalog.ParseTree([]byte(text))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailure, err)
	}

	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	r.setTree(tree)
	r.l.Info("imported catalog", zap.Int("leaves", tree.Stats().Leaves))
	return r.persist(ctx)
}

func (r *Repo) reset(ctx context.Context) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	start := time.Now()
	tree, err := r.fetchDocument(ctx)
	if err != nil {
		metrics.LoadFailedCounter.WithLabelValues().Inc()
		return fmt.Errorf("%w: %w", ErrLoadFailure, err)
	}
	if err := r.history.ClearCurrent(ctx); err != nil {
		metrics.PersistFailedCounter.WithLabelValues().Inc()
		return fmt.Errorf("%w: %w", ErrPersistFailure, err)
	}
	r.setTree(tree)
	metrics.LoadCounter.WithLabelValues(string(SourceDocument)).Inc()
	metrics.LoadDuration.WithLabelValues(string(SourceDocument)).Observe(time.Since(start).Seconds())
	r.l.Info("reset catalog to the catalog document", zap.String("url", r.url))
	return nil
}

// persist writes the current tree, the caller holds writeLock
func (r *Repo) persist(ctx context.Context) error {
	r.treeLock.RLock()
	data, err := catalog.Encode(r.tree, false)
	r.treeLock.RUnlock()
	if err == nil {
		err = r.history.Add(ctx, data)
	}
	if err != nil {
		metrics.PersistFailedCounter.WithLabelValues().Inc()
		r.l.Error("could not persist catalog, in-memory catalog is ahead of the persisted snapshot", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersistFailure, err)
	}
	return nil
}

// notify runs after writeLock is released, events of concurrent writers may
// arrive in any order
func (r *Repo) notify(event catalog.Event) {
	r.onChangeMu.RLock()
	fn := r.onChange
	r.onChangeMu.RUnlock()
	if fn != nil {
		fn(event)
	}
}

func (r *Repo) track(op catalog.Operation, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.MutationsCounter.WithLabelValues(string(op), status).Inc()
}

func cloneAll(nodes []*catalog.Node) []*catalog.Node {
	clones := make([]*catalog.Node, len(nodes))
	for i, node := range nodes {
		clones[i] = node.Clone()
	}
	return clones
}

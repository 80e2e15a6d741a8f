package handler

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/foomo/catalogserver/pkg/bridge"
	"github.com/foomo/catalogserver/pkg/fetch"
	"github.com/foomo/catalogserver/pkg/metrics"
	"github.com/foomo/catalogserver/pkg/repo"
	"github.com/foomo/catalogserver/requests"
	"github.com/foomo/catalogserver/responses"
	httputils "github.com/foomo/keel/utils/net/http"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	HTTP struct {
		l           *zap.Logger
		path        string
		maxBodySize int64
		repo        *repo.Repo
		fetcher     *fetch.Fetcher
		bridge      *bridge.Bridge
	}
	HTTPOption func(*HTTP)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

// NewHTTP returns a shiny new web server
func NewHTTP(l *zap.Logger, repo *repo.Repo, opts ...HTTPOption) http.Handler {
	inst := &HTTP{
		l:           l.Named("http"),
		path:        "/catalogserver",
		maxBodySize: 32 << 20,
		repo:        repo,
	}

	for _, opt := range opts {
		opt(inst)
	}

	// remote callers must never reach the local file system
	if inst.fetcher == nil {
		inst.fetcher = fetch.New(inst.l)
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func WithBasePath(v string) HTTPOption {
	return func(o *HTTP) {
		o.path = strings.TrimSuffix(v, "/")
	}
}

// WithMaxBodySize upper bound for request bodies in bytes
func WithMaxBodySize(v int64) HTTPOption {
	return func(o *HTTP) {
		o.maxBodySize = v
	}
}

// WithFetcher used by addEntry requests carrying a url, it should not allow
// local files
func WithFetcher(v *fetch.Fetcher) HTTPOption {
	return func(o *HTTP) {
		o.fetcher = v
	}
}

// WithBridge reports the number of event subscribers in stats
func WithBridge(v *bridge.Bridge) HTTPOption {
	return func(o *HTTP) {
		o.bridge = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputils.ServerError(h.l, w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	if r.Body == nil {
		httputils.BadRequestServerError(h.l, w, r, errors.New("empty request body"))
		return
	}

	var maxBytesErr *http.MaxBytesError
	bytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodySize))
	if errors.As(err, &maxBytesErr) {
		httputils.ServerError(h.l, w, r, http.StatusRequestEntityTooLarge, errors.Wrap(err, "request body too large"))
		return
	} else if err != nil {
		httputils.BadRequestServerError(h.l, w, r, errors.Wrap(err, "failed to read incoming request"))
		return
	}

	route := Route(strings.TrimPrefix(r.URL.Path, h.path+"/"))
	status, reply, err := h.handleRequest(r.Context(), route, bytes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(reply)
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (h *HTTP) handleRequest(ctx context.Context, route Route, jsonBytes []byte) (int, []byte, error) {
	start := time.Now()

	reply := h.executeRequest(ctx, route, jsonBytes)
	status, result := http.StatusOK, "success"
	if errReply, ok := reply.(*responses.Error); ok {
		status, result = errReply.Status, "error"
	}

	metrics.ServiceRequestCounter.WithLabelValues(string(route), result).Inc()
	metrics.ServiceRequestDuration.WithLabelValues(string(route), result).Observe(time.Since(start).Seconds())

	bytes, err := h.encodeReply(reply)
	return status, bytes, err
}

func (h *HTTP) executeRequest(ctx context.Context, route Route, jsonBytes []byte) interface{} {
	var (
		reply             interface{}
		apiErr            error
		jsonErr           error
		processIfJSONIsOk = func(err error, processingFunc func()) {
			if err != nil {
				jsonErr = err
				return
			}
			processingFunc()
		}
	)

	switch route {
	case RouteGetCatalog:
		processIfJSONIsOk(unmarshal(jsonBytes, &requests.GetCatalog{}), func() {
			if tree := h.repo.Snapshot(); tree != nil {
				reply = tree
			} else {
				apiErr = repo.ErrNotLoaded
			}
		})
	case RouteAddEntry:
		addRequest := &requests.AddEntry{}
		processIfJSONIsOk(unmarshal(jsonBytes, addRequest), func() {
			if addRequest.URL != "" {
				reply, apiErr = h.fetcher.Register(ctx, h.repo, addRequest.Path, addRequest.URL, addRequest.DisplayName)
			} else {
				reply, apiErr = h.repo.AddEntry(ctx, addRequest.Path, addRequest.Content, addRequest.DisplayName)
			}
		})
	case RouteRemoveEntry:
		removeRequest := &requests.RemoveEntry{}
		processIfJSONIsOk(unmarshal(jsonBytes, removeRequest), func() {
			var removed bool
			removed, apiErr = h.repo.RemoveEntry(ctx, removeRequest.Path)
			reply = &responses.Remove{Removed: removed}
		})
	case RouteSearch:
		searchRequest := &requests.Search{}
		processIfJSONIsOk(unmarshal(jsonBytes, searchRequest), func() {
			reply = h.repo.Search(searchRequest.Query)
		})
	case RouteListUserAdded:
		processIfJSONIsOk(unmarshal(jsonBytes, &requests.ListUserAdded{}), func() {
			reply = h.repo.ListUserAdded()
		})
	case RouteExportSnapshot:
		processIfJSONIsOk(unmarshal(jsonBytes, &requests.ExportSnapshot{}), func() {
			var snapshot string
			snapshot, apiErr = h.repo.ExportSnapshot()
			reply = &responses.Export{Snapshot: snapshot}
		})
	case RouteImportSnapshot:
		importRequest := &requests.ImportSnapshot{}
		processIfJSONIsOk(unmarshal(jsonBytes, importRequest), func() {
			apiErr = h.repo.ImportSnapshot(ctx, importRequest.Snapshot)
			reply = &responses.Import{Imported: apiErr == nil}
		})
	case RouteReset:
		processIfJSONIsOk(unmarshal(jsonBytes, &requests.Reset{}), func() {
			apiErr = h.repo.Reset(ctx)
			reply = &responses.Reset{Reset: apiErr == nil}
		})
	case RouteStats:
		processIfJSONIsOk(unmarshal(jsonBytes, &requests.Stats{}), func() {
			reply = h.stats()
		})
	default:
		reply = responses.NewErrorf(responses.CodeUnknownRoute, "unknown handler: %s", route)
	}

	// error handling
	if jsonErr != nil {
		h.l.Error("could not read incoming json", zap.Error(jsonErr))
		reply = responses.NewErrorf(responses.CodeBadJSON, "could not read incoming json %s", jsonErr)
	} else if apiErr != nil {
		h.l.Error("an API error occurred", zap.String("route", string(route)), zap.Error(apiErr))
		reply = errorReply(apiErr)
	}

	return reply
}

func (h *HTTP) stats() *responses.Stats {
	s := h.repo.Stats()
	reply := &responses.Stats{
		Loaded:     h.repo.Loaded(),
		Categories: s.Categories,
		Leaves:     s.Leaves,
		UserAdded:  s.UserAdded,
	}
	if h.bridge != nil {
		reply.Subscribers = h.bridge.Subscribers()
	}
	return reply
}

// encodeReply takes an interface and encodes it as JSON
// it returns the resulting JSON and a marshalling error
func (h *HTTP) encodeReply(reply interface{}) (bytes []byte, err error) {
	bytes, err = json.Marshal(map[string]interface{}{
		"reply": reply,
	})
	if err != nil {
		h.l.Error("could not encode reply", zap.Error(err))
	}
	return
}

// unmarshal accepts an empty body for requests without parameters
func unmarshal(jsonBytes []byte, v interface{}) error {
	if len(strings.TrimSpace(string(jsonBytes))) == 0 {
		return nil
	}
	return json.Unmarshal(jsonBytes, v)
}

func errorReply(err error) *responses.Error {
	code := responses.CodeInternal
	switch {
	case errors.Is(err, repo.ErrNotLoaded):
		code = responses.CodeNotLoaded
	case errors.Is(err, repo.ErrParseFailure):
		code = responses.CodeParseFailure
	case errors.Is(err, repo.ErrPersistFailure):
		code = responses.CodePersistFailure
	case errors.Is(err, repo.ErrLoadFailure):
		code = responses.CodeLoadFailure
	case errors.Is(err, fetch.ErrFetchFailure):
		code = responses.CodeFetchFailure
	case errors.Is(err, repo.ErrInvalidPath):
		code = responses.CodeBadJSON
	}
	return responses.NewError(code, err.Error())
}

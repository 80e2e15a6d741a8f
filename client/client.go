package client

import (
	"context"
	"net/http"

	"github.com/foomo/catalogserver/catalog"
	"github.com/foomo/catalogserver/pkg/handler"
	"github.com/foomo/catalogserver/pkg/utils"
	"github.com/foomo/catalogserver/requests"
	"github.com/foomo/catalogserver/responses"
	"github.com/pkg/errors"
)

type (
	// Client a catalog server client
	Client struct {
		server     string
		httpClient *http.Client
		t          transport
	}
	Option func(*Client)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

// New creates a client for the catalog server api at server,
// e.g. http://localhost:8080/catalogserver
func New(server string, opts ...Option) (*Client, error) {
	if !utils.IsValidURL(server) {
		return nil, errors.Errorf("invalid server url %q", server)
	}

	inst := &Client{
		server:     server,
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(inst)
	}

	inst.t = newHTTPTransport(server, inst.httpClient)
	return inst, nil
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func WithHTTPClient(v *http.Client) Option {
	return func(o *Client) {
		o.httpClient = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// GetCatalog request the whole catalog tree
func (c *Client) GetCatalog(ctx context.Context) (*catalog.Node, error) {
	var response *catalog.Node
	if err := c.t.call(ctx, handler.RouteGetCatalog, &requests.GetCatalog{}, &response); err != nil {
		return nil, err
	}
	return response, nil
}

// AddEntry add or update a leaf, the server fetches request.URL if set
func (c *Client) AddEntry(ctx context.Context, request *requests.AddEntry) (*catalog.Node, error) {
	var response *catalog.Node
	if err := c.t.call(ctx, handler.RouteAddEntry, request, &response); err != nil {
		return nil, err
	}
	return response, nil
}

// RemoveEntry returns false if there was no leaf with that path
func (c *Client) RemoveEntry(ctx context.Context, path string) (bool, error) {
	response := &responses.Remove{}
	if err := c.t.call(ctx, handler.RouteRemoveEntry, &requests.RemoveEntry{Path: path}, response); err != nil {
		return false, err
	}
	return response.Removed, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]*catalog.Node, error) {
	response := []*catalog.Node{}
	if err := c.t.call(ctx, handler.RouteSearch, &requests.Search{Query: query}, &response); err != nil {
		return nil, err
	}
	return response, nil
}

func (c *Client) ListUserAdded(ctx context.Context) ([]*catalog.Node, error) {
	response := []*catalog.Node{}
	if err := c.t.call(ctx, handler.RouteListUserAdded, &requests.ListUserAdded{}, &response); err != nil {
		return nil, err
	}
	return response, nil
}

// ExportSnapshot the whole catalog as indented json, as accepted by ImportSnapshot
func (c *Client) ExportSnapshot(ctx context.Context) (string, error) {
	response := &responses.Export{}
	if err := c.t.call(ctx, handler.RouteExportSnapshot, &requests.ExportSnapshot{}, response); err != nil {
		return "", err
	}
	return response.Snapshot, nil
}

// ImportSnapshot replace the whole catalog with an exported snapshot
func (c *Client) ImportSnapshot(ctx context.Context, snapshot string) error {
	return c.t.call(ctx, handler.RouteImportSnapshot, &requests.ImportSnapshot{Snapshot: snapshot}, &responses.Import{})
}

// Reset tell the server to drop its persisted snapshot and reload the catalog document
func (c *Client) Reset(ctx context.Context) error {
	return c.t.call(ctx, handler.RouteReset, &requests.Reset{}, &responses.Reset{})
}

func (c *Client) Stats(ctx context.Context) (*responses.Stats, error) {
	response := &responses.Stats{}
	if err := c.t.call(ctx, handler.RouteStats, &requests.Stats{}, response); err != nil {
		return nil, err
	}
	return response, nil
}

func (c *Client) Server() string {
	return c.server
}

// ShutDown closes idle connections
func (c *Client) ShutDown() {
	c.t.shutdown()
}

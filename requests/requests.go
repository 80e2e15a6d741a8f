package requests

// GetCatalog - request the whole catalog tree
type GetCatalog struct{}

// AddEntry - add or update a leaf
type AddEntry struct {
	// slash or backslash separated, the last segment is the file name
	Path string `json:"path"`
	// raw source of the example, ignored when URL is set
	Content string `json:"content"`
	// fetch the source from here instead
	URL string `json:"url,omitempty"`
	// overrides the derived display name
	DisplayName string `json:"displayName,omitempty"`
}

// RemoveEntry - remove the leaf with this path
type RemoveEntry struct {
	Path string `json:"path"`
}

// Search - case insensitive search over leaf names, paths and scene names
type Search struct {
	Query string `json:"query"`
}

// ListUserAdded - list user added leaves
type ListUserAdded struct{}

// ExportSnapshot - request the whole catalog as serialized text
type ExportSnapshot struct{}

// ImportSnapshot - replace the whole catalog with an exported snapshot
type ImportSnapshot struct {
	Snapshot string `json:"snapshot"`
}

// Reset - drop the persisted snapshot and reload the catalog document
type Reset struct{}

// Stats - query catalog counts
type Stats struct{}

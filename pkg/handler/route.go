package handler

// Route type
type Route string

const (
	// RouteGetCatalog get the whole catalog tree
	RouteGetCatalog Route = "getCatalog"
	// RouteAddEntry add or update a leaf, from content or a url
	RouteAddEntry Route = "addEntry"
	// RouteRemoveEntry remove a leaf by path
	RouteRemoveEntry Route = "removeEntry"
	// RouteSearch search leaves
	RouteSearch Route = "search"
	// RouteListUserAdded list user added leaves
	RouteListUserAdded Route = "listUserAdded"
	// RouteExportSnapshot the whole catalog as serialized text
	RouteExportSnapshot Route = "exportSnapshot"
	// RouteImportSnapshot replace the whole catalog
	RouteImportSnapshot Route = "importSnapshot"
	// RouteReset drop the persisted snapshot and reload the catalog document
	RouteReset Route = "reset"
	// RouteStats catalog counts
	RouteStats Route = "stats"
	// RouteEvents websocket change stream, GET only, served by Events
	RouteEvents Route = "events"
)

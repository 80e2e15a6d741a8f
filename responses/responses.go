package responses

// Remove - result of a removal
type Remove struct {
	// false if there was no leaf with that path
	Removed bool `json:"removed"`
}

// Export - a serialized catalog, accepted by ImportSnapshot
type Export struct {
	Snapshot string `json:"snapshot"`
}

// Import - result of a snapshot import
type Import struct {
	Imported bool `json:"imported"`
}

// Reset - result of a reset
type Reset struct {
	Reset bool `json:"reset"`
}

// Stats - information about the catalog
type Stats struct {
	Loaded      bool `json:"loaded"`
	Categories  int  `json:"categories"`
	Leaves      int  `json:"leaves"`
	UserAdded   int  `json:"userAdded"`
	Subscribers int  `json:"subscribers"`
}

package repo

import (
	"github.com/pkg/errors"
)

var (
	// ErrLoadFailure no source could provide a catalog
	ErrLoadFailure = errors.New("catalog could not be loaded")
	// ErrNotLoaded the operation requires a loaded catalog
	ErrNotLoaded = errors.New("catalog not loaded")
	// ErrParseFailure a serialized catalog could not be decoded
	ErrParseFailure = errors.New("catalog snapshot is malformed")
	// ErrPersistFailure the snapshot slot could not be written after the
	// in-memory catalog was already changed, which is now ahead of the persisted copy
	ErrPersistFailure = errors.New("catalog changed in memory but could not be persisted")
	// ErrInvalidPath the entry path does not contain a file name
	ErrInvalidPath = errors.New("entry path must contain a file name")
)

package domain

import "errors"

// ErrNoTileIndex means the backing store has no tile partition; the
// query layer falls back to a whole-dataset scan instead of failing.
var ErrNoTileIndex = errors.New("no tile index available")

// ErrNotFound means a node lookup matched nothing. Distinct from a
// failed load of the backing store.
var ErrNotFound = errors.New("node not found")

// Package engine implements the durable log collections behind sdk.LogStore.
package engine

import (
	"fmt"

	"github.com/raj2399/Task-Evallo/pkg/sdk"
)

// Backends understood by Open.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Store is an sdk.LogStore that may hold resources such as an open database.
type Store interface {
	sdk.LogStore
	Close() error
}

// Open builds the store selected by backend. path is ignored by the memory backend.
func Open(backend, path string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch backend {
	case BackendFile, "":
		s, err = NewFileStore(path)
	case BackendMemory:
		s = NewMemStore(nil)
	case BackendSQLite:
		s, err = NewSQLiteStore(path)
	default:
		err = fmt.Errorf("unknown store backend %q", backend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// persistErr tags err as a persistence failure for the given operation.
func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", sdk.ErrPersistence, op, err)
}

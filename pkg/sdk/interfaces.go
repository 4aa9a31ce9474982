package sdk

import (
	"errors"

	"github.com/raj2399/Task-Evallo/pkg/schema"
)

// ErrPersistence is returned when the durable collection cannot be read or written.
var ErrPersistence = errors.New("persistence failure")

// --- Functional Interfaces (Interface Segregation) ---

// Appender adds one already validated record to the end of the collection.
type Appender interface {
	Append(rec schema.LogRecord) error
}

// Reader returns every record appended so far, in arrival order.
type Reader interface {
	ReadAll() ([]schema.LogRecord, error)
}

// --- Composite Interfaces ---

// LogStore is the append-only collection of log records.
// The file, memory and sqlite engines as well as the remote client implement it.
type LogStore interface {
	Appender
	Reader
}

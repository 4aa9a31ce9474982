package engine

import (
	"fmt"

	"github.com/raj2399/Task-Evallo/pkg/sdk"
)

// Migrate copies every record from src to dst in arrival order and returns how many were copied.
// This works for:
// - File -> SQLite (the "upgrade")
// - Remote -> File (backup of a running daemon)
func Migrate(src sdk.Reader, dst sdk.Appender) (int, error) {
	recs, err := src.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("failed to read source: %w", err)
	}

	for i, rec := range recs {
		if err := dst.Append(rec); err != nil {
			return i, fmt.Errorf("failed to append record %d to destination: %w", i, err)
		}
	}
	return len(recs), nil
}

package engine

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/raj2399/Task-Evallo/pkg/schema"
)

// WriteSnapshot writes recs to w as a zstd-compressed JSON array.
func WriteSnapshot(w io.Writer, recs []schema.LogRecord) error {
	if recs == nil {
		recs = []schema.LogRecord{}
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(enc).Encode(recs); err != nil {
		enc.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}

// ReadSnapshot decodes a snapshot produced by WriteSnapshot.
func ReadSnapshot(r io.Reader) ([]schema.LogRecord, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	content, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	recs, err := schema.DecodeAll(content)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return recs, nil
}

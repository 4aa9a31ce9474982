// Package logs ties the validator, the store and the query engine together.
// Both the HTTP API and the TCP router go through a Service.
package logs

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/raj2399/Task-Evallo/internal/metrics"
	"github.com/raj2399/Task-Evallo/internal/query"
	"github.com/raj2399/Task-Evallo/internal/validate"
	"github.com/raj2399/Task-Evallo/pkg/schema"
	"github.com/raj2399/Task-Evallo/pkg/sdk"
)

type Service struct {
	store     sdk.LogStore
	validator *validate.Validator
	logger    *slog.Logger
}

func NewService(store sdk.LogStore, v *validate.Validator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, validator: v, logger: logger.With("component", "logs")}
}

// Store returns the underlying collection.
func (s *Service) Store() sdk.LogStore {
	return s.store
}

// Ingest validates raw and appends it. The stored record is returned unchanged.
func (s *Service) Ingest(raw []byte) (schema.LogRecord, error) {
	rec, err := s.check(raw)
	if err != nil {
		s.logger.Debug("rejected log record", "error", err)
		return schema.LogRecord{}, err
	}

	if err := s.store.Append(rec); err != nil {
		s.logger.Error("failed to persist log record", "error", err)
		return schema.LogRecord{}, err
	}
	return rec, nil
}

// IngestBatch validates every payload before appending any of them.
// If an append fails part way, the records already appended are returned with the error.
func (s *Service) IngestBatch(raws [][]byte) ([]schema.LogRecord, error) {
	recs := make([]schema.LogRecord, 0, len(raws))
	for i, raw := range raws {
		rec, err := s.check(raw)
		if err != nil {
			s.logger.Debug("rejected log batch", "index", i, "error", err)
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		recs = append(recs, rec)
	}

	for i, rec := range recs {
		if err := s.store.Append(rec); err != nil {
			s.logger.Error("failed to persist log batch", "appended", i, "size", len(recs), "error", err)
			return recs[:i], err
		}
	}
	return recs, nil
}

// Search scans the whole collection and returns the requested page.
func (s *Service) Search(p query.Params) (query.Result, error) {
	recs, err := s.store.ReadAll()
	if err != nil {
		s.logger.Error("failed to read log collection", "error", err)
		return query.Result{}, err
	}
	metrics.ScannedRecords.Observe(float64(len(recs)))
	return p.Run(recs), nil
}

// Dump returns the whole collection in arrival order.
func (s *Service) Dump() ([]schema.LogRecord, error) {
	recs, err := s.store.ReadAll()
	if err != nil {
		s.logger.Error("failed to read log collection", "error", err)
	}
	return recs, err
}

func (s *Service) check(raw []byte) (schema.LogRecord, error) {
	if err := s.validator.Validate(raw); err != nil {
		return schema.LogRecord{}, err
	}
	rec, err := schema.Decode(raw)
	if err != nil {
		// Unreachable for payloads the validator accepted.
		return schema.LogRecord{}, &validate.Error{Details: []string{err.Error()}}
	}
	return rec, nil
}

// Outcome classifies err for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, validate.ErrSchemaInvalid):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}

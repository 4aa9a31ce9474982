// Package schema defines the log record shared by the store, the query engine and the transports.
package schema

import (
	"bytes"
	"encoding/json"
	"slices"
	"sort"
	"strings"
	"time"
)

// Level is the severity of a log record.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
)

// Levels lists every accepted level.
var Levels = []Level{LevelError, LevelWarn, LevelInfo, LevelDebug}

// Valid reports whether l is one of the accepted levels. The comparison is case-sensitive.
func (l Level) Valid() bool {
	for _, v := range Levels {
		if l == v {
			return true
		}
	}
	return false
}

// LogRecord is one validated log entry, the unit of storage and query.
// Records are never mutated after they have been appended to a store.
type LogRecord struct {
	Level      Level          `json:"level"`
	Message    string         `json:"message"`
	ResourceID string         `json:"resourceId"`
	Timestamp  string         `json:"timestamp"`
	TraceID    string         `json:"traceId"`
	SpanID     string         `json:"spanId"`
	Commit     string         `json:"commit"`
	Metadata   map[string]any `json:"metadata"`

	// Extra holds top-level fields outside the schema, kept verbatim so a stored
	// record reads back exactly as it was submitted.
	Extra map[string]json.RawMessage `json:"-"`
}

// recordFields is LogRecord without its JSON methods.
type recordFields LogRecord

var knownFields = []string{"level", "message", "resourceId", "timestamp", "traceId", "spanId", "commit", "metadata"}

// UnmarshalJSON matches schema fields by their exact name and keeps every other member in Extra.
func (r *LogRecord) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	known := make(map[string]json.RawMessage, len(knownFields))
	for _, key := range knownFields {
		if raw, ok := all[key]; ok {
			known[key] = raw
			delete(all, key)
		}
	}

	encoded, err := json.Marshal(known)
	if err != nil {
		return err
	}
	var fields recordFields
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return err
	}
	if len(all) > 0 {
		fields.Extra = all
	}

	*r = LogRecord(fields)
	return nil
}

func (r LogRecord) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(recordFields(r))
	if err != nil || len(r.Extra) == 0 {
		return base, err
	}

	keys := make([]string, 0, len(r.Extra))
	for key := range r.Extra {
		if !slices.Contains(knownFields, key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	// base is a non-empty object; splice the extra members in before its closing brace.
	var buf bytes.Buffer
	buf.Write(base[:len(base)-1])
	for _, key := range keys {
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		if raw := r.Extra[key]; len(raw) > 0 {
			buf.Write(raw)
		} else {
			buf.WriteString("null")
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Time returns the parsed timestamp of the record.
func (r LogRecord) Time() (time.Time, bool) {
	return ParseTimestamp(r.Timestamp)
}

// Decode unmarshals a single record. Numbers inside metadata are kept as json.Number
// so integers survive a round trip untouched.
func Decode(raw []byte) (LogRecord, error) {
	var rec LogRecord
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return LogRecord{}, err
	}
	return rec, nil
}

// DecodeAll unmarshals a JSON array of records.
func DecodeAll(raw []byte) ([]LogRecord, error) {
	var recs []LogRecord
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// timestampLayouts are tried in order. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-01",
	"2006",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RFC822Z,
	time.RFC822,
	time.UnixDate,
	time.ANSIC,
	"Mon Jan 2 2006 15:04:05 GMT-0700",
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006",
}

// ParseTimestamp parses the date/time notations clients commonly send.
// The second result is false when s does not denote a valid instant.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

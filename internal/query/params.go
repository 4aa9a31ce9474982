package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/raj2399/Task-Evallo/pkg/schema"
)

// Query string keys accepted by ParseParams.
const (
	KeyLevel          = "level"
	KeyMessage        = "message"
	KeyResourceID     = "resourceId"
	KeyTimestampStart = "timestamp_start"
	KeyTimestampEnd   = "timestamp_end"
	KeyTraceID        = "traceId"
	KeySpanID         = "spanId"
	KeyCommit         = "commit"
	KeyPage           = "page"
	KeyLimit          = "limit"
)

// Params is a fully interpreted query request.
type Params struct {
	Filter Filter
	Page   int
	Limit  int
}

// ParseParams interprets loosely typed query string values:
//   - text filters are used as given; an empty value means no filter
//   - timestamp_start and timestamp_end are dropped when they do not parse
//   - page and limit fall back to 1 and 10 when missing, non-numeric or not positive
func ParseParams(values url.Values) Params {
	f := Filter{
		Level:      schema.Level(values.Get(KeyLevel)),
		Message:    values.Get(KeyMessage),
		ResourceID: values.Get(KeyResourceID),
		TraceID:    values.Get(KeyTraceID),
		SpanID:     values.Get(KeySpanID),
		Commit:     values.Get(KeyCommit),
	}
	if t, ok := schema.ParseTimestamp(values.Get(KeyTimestampStart)); ok {
		f.Start = &t
	}
	if t, ok := schema.ParseTimestamp(values.Get(KeyTimestampEnd)); ok {
		f.End = &t
	}

	return Params{
		Filter: f,
		Page:   positiveOr(values.Get(KeyPage), DefaultPage),
		Limit:  positiveOr(values.Get(KeyLimit), DefaultLimit),
	}
}

// ParseMap is ParseParams for a plain key/value map, as sent over the TCP protocol.
func ParseMap(m map[string]string) Params {
	values := url.Values{}
	for k, v := range m {
		values.Set(k, v)
	}
	return ParseParams(values)
}

// Run executes p against recs.
func (p Params) Run(recs []schema.LogRecord) Result {
	return Run(recs, p.Filter, p.Page, p.Limit)
}

func positiveOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

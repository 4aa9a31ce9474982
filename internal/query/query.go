// Package query filters, orders and pages a full scan of the log collection.
package query

import (
	"sort"
	"strings"
	"time"

	"github.com/raj2399/Task-Evallo/pkg/schema"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Filter narrows a result set. Empty strings and nil bounds are inactive;
// all active conditions must hold at once.
type Filter struct {
	Level      schema.Level // exact
	Message    string       // case-insensitive substring
	ResourceID string       // exact
	Start      *time.Time   // inclusive lower bound
	End        *time.Time   // inclusive upper bound
	TraceID    string       // exact
	SpanID     string       // exact
	Commit     string       // exact
}

// Result is the page returned by Run. It lives in pkg/schema so SDK callers can name it.
type Result = schema.Page

type predicate func(rec schema.LogRecord, ts time.Time, ok bool) bool

// predicates returns the active conditions of f.
func (f Filter) predicates() []predicate {
	var preds []predicate

	if f.Level != "" {
		preds = append(preds, func(r schema.LogRecord, _ time.Time, _ bool) bool { return r.Level == f.Level })
	}
	if f.Message != "" {
		needle := strings.ToLower(f.Message)
		preds = append(preds, func(r schema.LogRecord, _ time.Time, _ bool) bool {
			return strings.Contains(strings.ToLower(r.Message), needle)
		})
	}
	if f.ResourceID != "" {
		preds = append(preds, func(r schema.LogRecord, _ time.Time, _ bool) bool { return r.ResourceID == f.ResourceID })
	}
	// A record whose own timestamp does not parse never satisfies a time bound.
	if f.Start != nil {
		start := *f.Start
		preds = append(preds, func(_ schema.LogRecord, ts time.Time, ok bool) bool { return ok && !ts.Before(start) })
	}
	if f.End != nil {
		end := *f.End
		preds = append(preds, func(_ schema.LogRecord, ts time.Time, ok bool) bool { return ok && !ts.After(end) })
	}
	if f.TraceID != "" {
		preds = append(preds, func(r schema.LogRecord, _ time.Time, _ bool) bool { return r.TraceID == f.TraceID })
	}
	if f.SpanID != "" {
		preds = append(preds, func(r schema.LogRecord, _ time.Time, _ bool) bool { return r.SpanID == f.SpanID })
	}
	if f.Commit != "" {
		preds = append(preds, func(r schema.LogRecord, _ time.Time, _ bool) bool { return r.Commit == f.Commit })
	}
	return preds
}

type entry struct {
	rec schema.LogRecord
	ts  time.Time
}

// Run applies f to recs, orders the survivors newest first and cuts out the requested page.
// recs is not modified. Non-positive page or limit fall back to DefaultPage and DefaultLimit.
func Run(recs []schema.LogRecord, f Filter, page, limit int) Result {
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	preds := f.predicates()
	matched := make([]entry, 0, len(recs))
next:
	for _, rec := range recs {
		ts, ok := rec.Time()
		for _, p := range preds {
			if !p(rec, ts, ok) {
				continue next
			}
		}
		matched = append(matched, entry{rec: rec, ts: ts})
	}

	// Stable, so records with equal timestamps keep arrival order.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].ts.After(matched[j].ts)
	})

	total := len(matched)
	res := Result{
		Logs:  []schema.LogRecord{},
		Total: total,
		Page:  page,
		Limit: limit,
	}
	if total > 0 {
		res.TotalPages = (total-1)/limit + 1
	}

	if page-1 >= total {
		return res
	}
	// start may overflow for very large limits; treated as past the end.
	start := (page - 1) * limit
	if start >= total || start < 0 {
		return res
	}
	end := start + limit
	if end > total || end < start {
		end = total
	}
	for _, e := range matched[start:end] {
		res.Logs = append(res.Logs, e.rec)
	}
	return res
}

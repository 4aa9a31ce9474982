package validate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() map[string]any {
	return map[string]any{
		"level":      "error",
		"message":    "Failed to connect to DB",
		"resourceId": "server-1234",
		"timestamp":  "2023-09-15T08:00:00Z",
		"traceId":    "abc-xyz-123",
		"spanId":     "span-456",
		"commit":     "5e5342f",
		"metadata":   map[string]any{"parentResourceId": "server-0987"},
	}
}

func encode(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	require.NoError(t, err)
	return v
}

func TestValidateAccepts(t *testing.T) {
	v := newValidator(t)

	assert.NoError(t, v.Validate(encode(t, validRecord())))

	for _, level := range []string{"error", "warn", "info", "debug"} {
		r := validRecord()
		r["level"] = level
		assert.True(t, v.Valid(encode(t, r)), level)
	}

	for _, ts := range []string{"2023-09-15T08:00Z", "2023-09-15T10:00+02:00", "2023-09-15", "2023"} {
		r := validRecord()
		r["timestamp"] = ts
		assert.NoError(t, v.Validate(encode(t, r)), ts)
	}

	// Empty strings and empty metadata are allowed, extra fields are tolerated.
	r := validRecord()
	r["message"] = ""
	r["metadata"] = map[string]any{}
	r["extra"] = 42
	assert.NoError(t, v.Validate(encode(t, r)))
}

func TestValidateMissingField(t *testing.T) {
	v := newValidator(t)

	for _, field := range []string{"level", "message", "resourceId", "timestamp", "traceId", "spanId", "commit", "metadata"} {
		t.Run(field, func(t *testing.T) {
			r := validRecord()
			delete(r, field)

			err := v.Validate(encode(t, r))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchemaInvalid))

			var verr *Error
			require.True(t, errors.As(err, &verr))
			assert.NotEmpty(t, verr.Details)
			assert.Contains(t, verr.Error(), field)
		})
	}
}

func TestValidateRejects(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name  string
		field string
		value any
	}{
		{"unknown level", "level", "fatal"},
		{"upper case level", "level", "ERROR"},
		{"numeric message", "message", 42},
		{"null resource", "resourceId", nil},
		{"boolean trace", "traceId", true},
		{"numeric span", "spanId", 7},
		{"object commit", "commit", map[string]any{}},
		{"timestamp not a date", "timestamp", "yesterday"},
		{"numeric timestamp", "timestamp", 1694764800},
		{"metadata array", "metadata", []any{"a"}},
		{"metadata null", "metadata", nil},
		{"metadata string", "metadata", "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			r[tt.field] = tt.value
			err := v.Validate(encode(t, r))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchemaInvalid)
		})
	}
}

func TestValidateNotAnObject(t *testing.T) {
	v := newValidator(t)

	for _, raw := range []string{`[{"level":"info"}]`, `"text"`, `42`, `null`, `{"level":`, ``, `not json`} {
		assert.False(t, v.Valid([]byte(raw)), raw)
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	v := newValidator(t)

	r := validRecord()
	r["level"] = "fatal"
	delete(r, "commit")
	r["timestamp"] = "soon"

	var verr *Error
	require.ErrorAs(t, v.Validate(encode(t, r)), &verr)
	assert.GreaterOrEqual(t, len(verr.Details), 3)
}

// Package validate is the schema gate every record passes before it reaches a store.
package validate

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/raj2399/Task-Evallo/pkg/schema"
	"github.com/valyala/fastjson"
	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaInvalid is matched by every rejection returned from Validate.
var ErrSchemaInvalid = errors.New("invalid log schema")

//go:embed logrecord.schema.json
var recordSchema string

// Error lists every rule a payload violated.
type Error struct {
	Details []string
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return ErrSchemaInvalid.Error()
	}
	return fmt.Sprintf("%s: %s", ErrSchemaInvalid, strings.Join(e.Details, "; "))
}

func (e *Error) Unwrap() error { return ErrSchemaInvalid }

// Validator checks raw JSON payloads against the log record schema.
// It holds no per-call state and is safe for concurrent use.
type Validator struct {
	schema *gojsonschema.Schema
	parser fastjson.ParserPool
}

// New compiles the embedded record schema.
func New() (*Validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(recordSchema))
	if err != nil {
		return nil, fmt.Errorf("invalid record schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// Valid is the boolean form of Validate.
func (v *Validator) Valid(raw []byte) bool {
	return v.Validate(raw) == nil
}

// Validate returns nil when raw is an acceptable log record and an *Error otherwise.
func (v *Validator) Validate(raw []byte) error {
	p := v.parser.Get()
	defer v.parser.Put(p)

	doc, err := p.ParseBytes(raw)
	if err != nil {
		return &Error{Details: []string{"(root): payload is not valid JSON"}}
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return &Error{Details: []string{"(root): " + err.Error()}}
	}

	var details []string
	for _, desc := range result.Errors() {
		details = append(details, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}

	// The structural schema cannot express "parses to a valid instant".
	if ts := doc.Get("timestamp"); ts != nil && ts.Type() == fastjson.TypeString {
		if _, ok := schema.ParseTimestamp(string(ts.GetStringBytes())); !ok {
			details = append(details, "timestamp: not a valid date/time")
		}
	}

	if len(details) > 0 {
		return &Error{Details: details}
	}
	return nil
}

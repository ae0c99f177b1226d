package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed warden.embedded.schema.json
var embedded []byte

// Validator checks configuration values against the embedded schema.
type Validator struct {
	compiled *jsonschema.Schema
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("warden.json", bytes.NewReader(embedded)); err != nil {
		return nil, fmt.Errorf("add embedded schema: %w", err)
	}
	compiled, err := c.Compile("warden.json")
	if err != nil {
		return nil, fmt.Errorf("compile embedded schema: %w", err)
	}
	return &Validator{compiled: compiled}, nil
}

// Validate checks v, a struct or map, against the schema. Values
// round-trip through JSON first since the schema library wants plain
// maps and slices. Violations come back joined, one line per path.
func (val *Validator) Validate(v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode config for validation: %w", err)
	}
	var plain interface{}
	if err := json.Unmarshal(raw, &plain); err != nil {
		return fmt.Errorf("decode config for validation: %w", err)
	}

	err = val.compiled.Validate(plain)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		if lines := flatten(ve); len(lines) > 0 {
			return errors.New(strings.Join(lines, "\n"))
		}
	}
	return fmt.Errorf("check against schema: %w", err)
}

// flatten walks the error tree into per-path messages.
func flatten(ve *jsonschema.ValidationError) []string {
	var out []string
	if ve.InstanceLocation != "" {
		out = append(out, fmt.Sprintf("- %s: %s", ve.InstanceLocation, ve.Message))
	}
	for _, cause := range ve.Causes {
		out = append(out, flatten(cause)...)
	}
	return out
}

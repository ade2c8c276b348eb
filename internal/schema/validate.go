// Package schema compiles and applies JSON schemas for tool inputs.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Compile parses a JSON schema document. A nil schema and nil error are
// returned for an empty document.
func Compile(schemaJSON json.RawMessage) (*jsonschema.Schema, error) {
	if len(schemaJSON) == 0 {
		return nil, nil
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("schema resource: %w", err)
	}
	s, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return s, nil
}

// Validate checks raw against s. A nil schema accepts everything.
func Validate(s *jsonschema.Schema, raw json.RawMessage) error {
	if s == nil {
		return nil
	}
	if len(raw) == 0 {
		return fmt.Errorf("empty json")
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	return s.Validate(doc)
}

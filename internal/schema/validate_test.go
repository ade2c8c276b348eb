package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addSchema = `{
	"type": "object",
	"properties": {"a": {"type": "number"}, "b": {"type": "number"}},
	"required": ["a", "b"]
}`

func TestCompileEmpty(t *testing.T) {
	s, err := Compile(nil)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.NoError(t, Validate(s, json.RawMessage(`"anything"`)))
}

func TestCompileInvalid(t *testing.T) {
	_, err := Compile(json.RawMessage(`{"type": 5}`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	s, err := Compile(json.RawMessage(addSchema))
	require.NoError(t, err)

	assert.NoError(t, Validate(s, json.RawMessage(`{"a":2,"b":3}`)))
	assert.Error(t, Validate(s, json.RawMessage(`{"a":"two"}`)))
	assert.Error(t, Validate(s, json.RawMessage(`{`)))
	assert.Error(t, Validate(s, nil))
}

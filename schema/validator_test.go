package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string"},
    "mode": {"type": "string", "enum": ["fast", "slow"]}
  }
}`

type doc struct {
	Name  string `json:"name,omitempty"`
	Mode  string `json:"mode,omitempty"`
	Extra string `json:"extra,omitempty"`
}

func TestValidatorAcceptsValidDocument(t *testing.T) {
	v, err := NewValidator([]byte(testSchema))
	require.NoError(t, err)

	assert.NoError(t, v.Validate(doc{Name: "a", Mode: "fast"}))
	assert.NoError(t, v.Validate(doc{}))
}

func TestValidatorReportsLocations(t *testing.T) {
	v, err := NewValidator([]byte(testSchema))
	require.NoError(t, err)

	err = v.Validate(doc{Mode: "medium"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/mode")

	err = v.Validate(doc{Extra: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
}

func TestNewValidatorRejectsBrokenSchema(t *testing.T) {
	_, err := NewValidator([]byte(`{"type": 12}`))
	assert.Error(t, err)

	_, err = NewValidator([]byte(`not json`))
	assert.Error(t, err)
}

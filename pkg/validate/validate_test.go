package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type request struct {
	Name string `json:"name" validate:"required,identifier"`
	Type string `json:"type" validate:"required,max=64"`
}

func TestStruct(t *testing.T) {
	_, err := Struct(request{Name: "items", Type: "TEXT"})
	assert.NoError(t, err)

	_, err = Struct(request{Name: "1items", Type: "TEXT"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'Name' failed rule 'identifier'")

	_, err = Struct(request{Name: "items"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'Type' failed rule 'required'")
}

func TestValue(t *testing.T) {
	assert.NoError(t, Value("abc", "max=3"))
	err := Value("abcd", "max=3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max=3")
}

func TestIdentifier(t *testing.T) {
	assert.True(t, identifier("_a1"))
	assert.False(t, identifier("a-b"))
	assert.False(t, identifier("9a"))
	assert.False(t, identifier(""))
}

package evolution

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kittclouds/lorecards/internal/errors"
)

func TestParseAttribute(t *testing.T) {
	for attr, path := range attrPaths {
		got, err := ParseAttribute(path)
		require.NoError(t, err, path)
		assert.Equal(t, attr, got)
		assert.Equal(t, path, attr.String())
		assert.NotEqual(t, kindNone, attr.kind(), path)
	}

	_, err := ParseAttribute("metrics.charisma")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.New(apperrors.CodeInvalidAttribute, "")))
}

func TestAttributeJSON(t *testing.T) {
	var e Effect
	require.NoError(t, json.Unmarshal([]byte(`{"operation":"add","attribute":"metrics.bondStrength","number":5}`), &e))
	assert.Equal(t, AttrBondStrength, e.Attribute)

	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"attribute":"metrics.bondStrength"`)

	assert.Error(t, json.Unmarshal([]byte(`{"attribute":"nope"}`), &e))
}

func TestRoleMatcher(t *testing.T) {
	m := NewRoleMatcher(DefaultRoleRules())

	assert.Equal(t, "protagonist", m.Infer([]string{"The Lead"}))
	assert.Equal(t, "antagonist", m.Infer([]string{"secret-villain"}))
	// Earlier rule wins regardless of tag order.
	assert.Equal(t, "protagonist", m.Infer([]string{"mentor arc", "hero's journey"}))
	assert.Equal(t, DefaultRole, m.Infer([]string{"background"}))
	assert.Equal(t, DefaultRole, m.Infer(nil))

	assert.Equal(t, DefaultRole, NewRoleMatcher(nil).Infer([]string{"lead"}))
}

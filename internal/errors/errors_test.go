package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	sentinel := New(CodeCharacterNotFound, "character not found")
	err := WithMetadata(CodeCharacterNotFound, "character not found: zed", map[string]string{"characterId": "zed"})

	assert.True(t, stderrors.Is(err, sentinel))
	assert.False(t, stderrors.Is(err, New(CodeInvalidEpisodeID, "invalid episode id")))
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := Wrap(CodeNotFound, "load roster", cause)

	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.Equal(t, "load roster", err.Error())
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("calculate: %w", New(CodeInvalidEpisodeID, "invalid episode id"))
	assert.Equal(t, CodeInvalidEpisodeID, CodeOf(err))
	assert.Equal(t, CodeUnknown, CodeOf(fmt.Errorf("plain")))
	assert.Equal(t, CodeUnknown, CodeOf(nil))
}

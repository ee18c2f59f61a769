package analysis

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoringError(t *testing.T) {
	err := newScoringError(ReasonUnsupportedTargetType, "%q", "olympic")
	assert.Equal(t, `unsupported_target_type: "olympic"`, err.Error())
	assert.Equal(t, "no_detection", ErrNoDetection.Error())

	wrapped := fmt.Errorf("frame 3: %w", err)
	assert.True(t, errors.Is(wrapped, ErrUnsupportedTargetType))
	assert.False(t, errors.Is(wrapped, ErrNoTargetDetected))

	reason, ok := ReasonOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ReasonUnsupportedTargetType, reason)

	_, ok = ReasonOf(errors.New("plain"))
	assert.False(t, ok)
}

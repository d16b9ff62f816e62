package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"zerorag/internal/zerotypes"
)

func TestSafetyScoreFlagsHarmfulPattern(t *testing.T) {
	assert.Equal(t, 0.0, SafetyScore("Here is how to make a bomb at home."))
	assert.Equal(t, 1.0, SafetyScore("The capital of France is Paris."))
}

func TestContextAdherenceMeasuresOverlap(t *testing.T) {
	adherence := ContextAdherence("the capital of France is Paris", "Paris is the capital of France, a country in Europe")
	assert.Greater(t, adherence, 0.5)
}

func TestValidateFlagsGenericAnswerAsWarning(t *testing.T) {
	status, safety := Validate("I don't know.", "some context", zerotypes.FormatText, true)
	assert.Equal(t, zerotypes.ValidationWarning, status)
	assert.Equal(t, 1.0, safety)
}

func TestValidateFlagsHarmfulAnswerAsError(t *testing.T) {
	status, safety := Validate("how to make a bomb at home", "context", zerotypes.FormatText, false)
	assert.Equal(t, zerotypes.ValidationError, status)
	assert.Equal(t, 0.0, safety)
}

func TestValidateRequiresThreeBulletsForBulletFormat(t *testing.T) {
	status, _ := Validate("- one\n- two", "context here is long enough to matter", zerotypes.FormatBulletPoints, true)
	assert.Equal(t, zerotypes.ValidationWarning, status)
}

package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"zerorag/internal/zerotypes"
)

func TestBuildUsesFallbackTemplateWhenContextEmpty(t *testing.T) {
	prompt := Build(zerotypes.QueryGeneral, zerotypes.SafetyStandard, zerotypes.FormatText, "", "What is Go?")
	assert.Contains(t, prompt, "No relevant context was found")
	assert.Contains(t, prompt, "What is Go?")
}

func TestBuildIncludesContextAndFormatBlock(t *testing.T) {
	prompt := Build(zerotypes.QueryFactual, zerotypes.SafetyStandard, zerotypes.FormatBulletPoints, "Go is a language.", "What is Go?")
	assert.True(t, strings.Contains(prompt, "Go is a language."))
	assert.True(t, strings.Contains(prompt, "bullet list"))
}

func TestBuildIsDeterministic(t *testing.T) {
	a := Build(zerotypes.QueryAnalytical, zerotypes.SafetyConservative, zerotypes.FormatJSON, "ctx", "q")
	b := Build(zerotypes.QueryAnalytical, zerotypes.SafetyConservative, zerotypes.FormatJSON, "ctx", "q")
	assert.Equal(t, a, b)
}

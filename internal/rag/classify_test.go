package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"zerorag/internal/zerotypes"
)

func TestClassifyRoutesByKeyword(t *testing.T) {
	assert.Equal(t, zerotypes.QueryFactual, Classify("What is the capital of France?", nil))
	assert.Equal(t, zerotypes.QueryAnalytical, Classify("Explain why the sky is blue.", nil))
	assert.Equal(t, zerotypes.QueryComparative, Classify("Compare Go and Rust.", nil))
	assert.Equal(t, zerotypes.QuerySummarization, Classify("Summarize this document.", nil))
	assert.Equal(t, zerotypes.QueryCreative, Classify("Imagine a world without electricity.", nil))
	assert.Equal(t, zerotypes.QueryGeneral, Classify("Tell me something interesting.", nil))
}

func TestClassifyOverrideWins(t *testing.T) {
	override := zerotypes.QueryCreative
	assert.Equal(t, zerotypes.QueryCreative, Classify("What time is it?", &override))
}

package documents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextFitsInSingleChunk(t *testing.T) {
	chunks, err := chunkText("doc-1", "short text that fits easily", 1000, 200, 1000)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].StartChar)
}

func TestChunkTextExactBoundaryYieldsOneChunk(t *testing.T) {
	text := strings.Repeat("a", 1000)
	chunks, err := chunkText("doc-1", text, 1000, 200, 1000)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestChunkTextAdjacentChunksOverlapButDoNotRegress(t *testing.T) {
	sentence := "This is a sentence. "
	text := strings.Repeat(sentence, 200)
	chunks, err := chunkText("doc-1", text, 500, 100, 1000)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		assert.GreaterOrEqual(t, chunks[i].StartChar, chunks[i-1].StartChar)
		assert.LessOrEqual(t, chunks[i].StartChar, chunks[i-1].EndChar)
	}
}

func TestChunkTextRejectsTooManyChunks(t *testing.T) {
	text := strings.Repeat("word ", 100000)
	_, err := chunkText("doc-1", text, 10, 2, 5)
	require.Error(t, err)
}

func TestChunkTextCutsOnSentenceBoundaryWhenAvailable(t *testing.T) {
	text := "First sentence ends here. " + strings.Repeat("x", 940) + ". Second sentence starts after the stride."
	chunks, err := chunkText("doc-1", text, 1000, 0, 1000)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(chunks[0].Text), "."))
}

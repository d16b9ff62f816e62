package documents

import (
	"strings"
	"time"

	"zerorag/internal/apperrors"
	"zerorag/internal/zerotypes"
)

// sentenceEndings are the punctuation marks the chunker searches backward
// for when looking for a clean cut point.
var sentenceEndings = []byte{'.', '!', '?'}

// chunkText implements the sentence-aware chunking algorithm from spec
// §4.3: normalize whitespace, emit a single chunk if the text already
// fits, otherwise advance a cursor in strides of chunkSize, searching
// backward for a sentence boundary, with overlap between consecutive
// chunks.
func chunkText(sourceDocumentID, text string, chunkSize, chunkOverlap, maxChunks int) ([]zerotypes.Chunk, error) {
	normalized := normalizeWhitespace(text)
	runes := []rune(normalized)

	if len(runes) == 0 {
		return nil, nil
	}

	if len(runes) <= chunkSize {
		c := buildChunk(sourceDocumentID, 0, 0, len(runes), runes)
		return []zerotypes.Chunk{c}, nil
	}

	lookback := chunkSize / 2
	if lookback > 100 {
		lookback = 100
	}

	var chunks []zerotypes.Chunk
	start := 0
	for start < len(runes) {
		strideEnd := start + chunkSize
		if strideEnd > len(runes) {
			strideEnd = len(runes)
		}

		end := strideEnd
		if strideEnd < len(runes) {
			if cut, ok := findSentenceBoundary(runes, strideEnd, lookback); ok {
				end = cut
			}
		}
		if end <= start {
			end = strideEnd
		}

		c := buildChunk(sourceDocumentID, len(chunks), start, end, runes)
		chunks = append(chunks, c)

		if len(chunks) > maxChunks {
			return nil, apperrors.Validation("chunk count %d exceeds limit %d", len(chunks), maxChunks)
		}

		if end >= len(runes) {
			break
		}

		next := end - chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, nil
}

// findSentenceBoundary searches backward from strideEnd, up to lookback
// runes, for a sentence-ending punctuation mark, returning the index just
// after it.
func findSentenceBoundary(runes []rune, strideEnd, lookback int) (int, bool) {
	limit := strideEnd - lookback
	if limit < 0 {
		limit = 0
	}
	for i := strideEnd - 1; i >= limit; i-- {
		for _, p := range sentenceEndings {
			if runes[i] == rune(p) {
				return i + 1, true
			}
		}
	}
	return 0, false
}

func buildChunk(sourceDocumentID string, index, start, end int, runes []rune) zerotypes.Chunk {
	text := string(runes[start:end])
	now := time.Now()
	return zerotypes.Chunk{
		ID:               zerotypes.ChunkID(sourceDocumentID, index, start),
		SourceDocumentID: sourceDocumentID,
		ChunkIndex:       index,
		Text:             text,
		StartChar:        start,
		EndChar:          end,
		ByteSize:         len(text),
		WordCount:        len(strings.Fields(text)),
		SentenceCount:    countSentences(text),
		CreatedAt:        now,
		ContentPreview:   zerotypes.Preview(text, 100),
	}
}

// normalizeWhitespace collapses runs of spaces/tabs to a single space
// while preserving paragraph breaks as double newlines, per step 1.
func normalizeWhitespace(text string) string {
	paragraphs := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	for i, p := range paragraphs {
		fields := strings.Fields(p)
		paragraphs[i] = strings.Join(fields, " ")
	}
	return strings.Join(paragraphs, "\n\n")
}

func countSentences(text string) int {
	count := 0
	for _, r := range text {
		for _, p := range sentenceEndings {
			if r == rune(p) {
				count++
			}
		}
	}
	if count == 0 && strings.TrimSpace(text) != "" {
		return 1
	}
	return count
}

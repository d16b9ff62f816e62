package rag

import (
	"fmt"
	"sort"
	"strings"

	"zerorag/internal/zerotypes"
)

// minTruncatedChars is the floor below which a truncated candidate is
// skipped rather than appended.
const minTruncatedChars = 200

// PackedContext is the result of greedily packing retained search results
// into a context string bounded by max_context_length.
type PackedContext struct {
	Text    string
	Sources []zerotypes.Source
}

// PackContext sorts results by score descending and greedily appends
// source-headered text until maxLength would be exceeded. The final
// candidate may be sentence-boundary truncated if the truncated form
// still has at least minTruncatedChars characters.
func PackContext(results []zerotypes.SearchResult, maxLength int) PackedContext {
	sorted := make([]zerotypes.SearchResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	var sb strings.Builder
	var sources []zerotypes.Source

	for i, r := range sorted {
		header := fmt.Sprintf("Document %d: %s (Relevance: %.2f) | Chunk %d | Content: ", i+1, sourceFileName(r), r.Score, r.Payload.ChunkIndex)
		entry := header + r.Payload.Text + "\n\n"

		if sb.Len()+len(entry) <= maxLength {
			sb.WriteString(entry)
			sources = append(sources, zerotypes.Source{
				ChunkID:  r.ChunkID,
				FileName: sourceFileName(r),
				Snippet:  zerotypes.Preview(r.Payload.Text, 160),
				Score:    r.Score,
			})
			continue
		}

		remaining := maxLength - sb.Len() - len(header) - len("\n\n")
		if remaining < minTruncatedChars {
			break
		}
		truncated := truncateOnSentenceBoundary(r.Payload.Text, remaining)
		if len(truncated) < minTruncatedChars {
			break
		}
		sb.WriteString(header + truncated + "\n\n")
		sources = append(sources, zerotypes.Source{
			ChunkID:  r.ChunkID,
			FileName: sourceFileName(r),
			Snippet:  zerotypes.Preview(truncated, 160),
			Score:    r.Score,
		})
		break
	}

	return PackedContext{Text: strings.TrimSpace(sb.String()), Sources: sources}
}

func sourceFileName(r zerotypes.SearchResult) string {
	if name, ok := r.Payload.Metadata["file_name"]; ok {
		return name
	}
	return r.Payload.SourceDocumentID
}

// truncateOnSentenceBoundary cuts text to at most limit runes, backing up
// to the nearest preceding sentence end if one exists within the window.
func truncateOnSentenceBoundary(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	window := runes[:limit]
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?':
			return string(window[:i+1])
		}
	}
	return string(window)
}

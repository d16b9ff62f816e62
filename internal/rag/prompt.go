package rag

import (
	"fmt"
	"strings"

	"zerorag/internal/zerotypes"
)

// safetyBlocks holds the three static safety paragraphs selected by
// SafetyLevel.
var safetyBlocks = map[zerotypes.SafetyLevel]string{
	zerotypes.SafetyStandard:     "Answer helpfully and honestly. Do not fabricate facts not present in the provided context.",
	zerotypes.SafetyConservative: "Be conservative: only state what is directly supported by the provided context, and explicitly flag uncertainty.",
	zerotypes.SafetyPermissive:   "Answer freely, using the provided context as a starting point and your own judgment to fill reasonable gaps.",
}

// formatBlocks holds the instruction snippet selected by ResponseFormat.
var formatBlocks = map[zerotypes.ResponseFormat]string{
	zerotypes.FormatText:         "Respond in plain prose.",
	zerotypes.FormatBulletPoints: "Respond as a Markdown bullet list with at least 3 items.",
	zerotypes.FormatNumberedList: "Respond as a Markdown numbered list.",
	zerotypes.FormatTable:        "Respond as a Markdown table.",
	zerotypes.FormatJSON:         "Respond with a single valid JSON object and nothing else.",
	zerotypes.FormatSummary:      "Respond with a concise summary of no more than 3 sentences.",
}

// queryTypeIntros prefaces the base instruction per QueryType.
var queryTypeIntros = map[zerotypes.QueryType]string{
	zerotypes.QueryGeneral:       "Answer the question below using the provided context.",
	zerotypes.QueryFactual:       "Answer the factual question below precisely, citing the provided context.",
	zerotypes.QueryAnalytical:    "Analyze the question below in depth, drawing on the provided context.",
	zerotypes.QueryComparative:   "Compare the items in the question below, drawing out similarities and differences from the provided context.",
	zerotypes.QuerySummarization: "Summarize the relevant material from the provided context to answer the question below.",
	zerotypes.QueryCreative:      "Respond creatively to the prompt below, using the provided context as inspiration where relevant.",
}

// Build is PromptEngine.build: a pure function of its inputs. It holds
// six templates (one per QueryType) plus a fallback used whenever
// context is empty.
func Build(queryType zerotypes.QueryType, safetyLevel zerotypes.SafetyLevel, format zerotypes.ResponseFormat, context, query string) string {
	safety := safetyBlocks[safetyLevel]
	if safety == "" {
		safety = safetyBlocks[zerotypes.SafetyStandard]
	}
	formatBlock := formatBlocks[format]
	if formatBlock == "" {
		formatBlock = formatBlocks[zerotypes.FormatText]
	}

	if strings.TrimSpace(context) == "" {
		return fallbackTemplate(safety, formatBlock, query)
	}

	intro := queryTypeIntros[queryType]
	if intro == "" {
		intro = queryTypeIntros[zerotypes.QueryGeneral]
	}

	var sb strings.Builder
	sb.WriteString(intro)
	sb.WriteString("\n\n")
	sb.WriteString(safety)
	sb.WriteString("\n\n")
	sb.WriteString(formatBlock)
	sb.WriteString("\n\nContext:\n")
	sb.WriteString(context)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(query)
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}

func fallbackTemplate(safety, formatBlock, query string) string {
	return fmt.Sprintf(
		"No relevant context was found for this question. Answer from general knowledge if possible, and say so explicitly.\n\n%s\n\n%s\n\nQuestion: %s\n\nAnswer:",
		safety, formatBlock, query,
	)
}

package rag

import (
	"regexp"
	"strings"

	"zerorag/internal/zerotypes"
)

// harmfulPatterns is a compiled set of crude harmful-content markers; a
// match drives safety_score to 0.0. This is a
// pattern scan, not a classifier — it catches obvious cases only.
var harmfulPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)how to (make|build|synthesize) .*(bomb|explosive|weapon)`),
	regexp.MustCompile(`(?i)\b(kill|murder) (yourself|someone)\b`),
	regexp.MustCompile(`(?i)\bchild (sexual|abuse) material\b`),
}

var genericAnswers = []string{"i don't know.", "i don't know", "n/a", "not applicable"}

// SafetyScore returns 0.0 if any harmful pattern matched, else 1.0.
func SafetyScore(answer string) float64 {
	for _, p := range harmfulPatterns {
		if p.MatchString(answer) {
			return 0.0
		}
	}
	return 1.0
}

// ContextAdherence returns the token-set overlap ratio between answer and
// packed context: |answer_tokens ∩ context_tokens| / |answer_tokens|.
func ContextAdherence(answer, context string) float64 {
	answerTokens := tokenSet(answer)
	if len(answerTokens) == 0 {
		return 1.0
	}
	contextTokens := tokenSet(context)
	var overlap int
	for t := range answerTokens {
		if contextTokens[t] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(answerTokens))
}

func tokenSet(text string) map[string]bool {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()")
		if f != "" {
			set[f] = true
		}
	}
	return set
}

// isGenericAnswer reports whether the answer is a stock non-answer.
func isGenericAnswer(answer string) bool {
	lower := strings.ToLower(strings.TrimSpace(answer))
	for _, g := range genericAnswers {
		if lower == g {
			return true
		}
	}
	return false
}

// matchesFormat checks the answer's structure against response_format's
// expectations, e.g. bullet_points requires at least 3 bullet lines.
func matchesFormat(answer string, format zerotypes.ResponseFormat) bool {
	switch format {
	case zerotypes.FormatBulletPoints:
		return countBulletLines(answer) >= 3
	case zerotypes.FormatNumberedList:
		return countNumberedLines(answer) >= 2
	default:
		return true
	}
}

func countBulletLines(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*") {
			count++
		}
	}
	return count
}

func countNumberedLines(text string) int {
	numbered := regexp.MustCompile(`^\d+[.)]\s`)
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if numbered.MatchString(strings.TrimSpace(line)) {
			count++
		}
	}
	return count
}

// Validate computes safety_score and the worst-of{safety, adherence,
// quality} validation_status.
func Validate(answer, context string, format zerotypes.ResponseFormat, sourcesPresent bool) (zerotypes.ValidationStatus, float64) {
	safety := SafetyScore(answer)
	status := zerotypes.ValidationValid
	if safety == 0.0 {
		status = zerotypes.ValidationError
	}

	adherence := ContextAdherence(answer, context)
	if sourcesPresent && adherence < 0.15 && status == zerotypes.ValidationValid {
		status = zerotypes.ValidationWarning
	}

	if status == zerotypes.ValidationValid {
		if len([]rune(answer)) < 20 || isGenericAnswer(answer) || !matchesFormat(answer, format) {
			status = zerotypes.ValidationWarning
		}
	}

	return status, safety
}

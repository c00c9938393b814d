// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package llm

import "strings"

// errorIndicatorPhrases are substrings whose presence suggests a
// degraded or apologetic response, per spec.md §4.4.1.
var errorIndicatorPhrases = []string{
	"i cannot", "i can't", "i'm unable", "i am unable",
	"sorry", "error occurred", "something went wrong",
	"as an ai", "i don't have access",
}

// stopWords is excluded from relevance token extraction.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "from": true, "have": true, "what": true, "about": true,
	"your": true, "which": true, "into": true, "their": true, "would": true,
	"could": true, "should": true, "there": true, "these": true, "those": true,
}

// EvaluateQuality scores a response against the prompt it answered. When
// disabled is true (evaluation explicitly turned off for a call), every
// component is 1.0.
func EvaluateQuality(prompt, response string, disabled bool) QualityScore {
	if disabled {
		return NewQualityScore(1, 1, 1)
	}
	return NewQualityScore(
		completenessScore(response),
		relevanceScore(prompt, response),
		coherenceScore(response),
	)
}

func completenessScore(response string) float64 {
	if response == "" {
		return 0
	}
	score := 1.0
	if len(response) < 50 {
		score *= 0.5
	}
	lower := strings.ToLower(response)
	for _, phrase := range errorIndicatorPhrases {
		if strings.Contains(lower, phrase) {
			score *= 0.6
			break
		}
	}
	if strings.HasSuffix(strings.TrimSpace(response), "...") {
		score *= 0.8
	}
	return score
}

func relevanceScore(prompt, response string) float64 {
	tokens := contentWords(prompt)
	if len(tokens) == 0 {
		return 0
	}
	lowerResponse := strings.ToLower(response)
	var matched int
	for _, tok := range tokens {
		if strings.Contains(lowerResponse, tok) {
			matched++
		}
	}
	score := float64(matched) / float64(len(tokens))
	if len(response) > 200 {
		score = clamp01(score * 1.1)
	}
	return score
}

func coherenceScore(response string) float64 {
	score := 1.0
	if !hasSentenceTerminator(response) {
		score *= 0.7
	}

	words := strings.Fields(response)
	nonTrivial := nonTrivialWords(words)
	if len(nonTrivial) > 0 {
		counts := map[string]int{}
		for _, w := range nonTrivial {
			counts[strings.ToLower(w)]++
		}
		for _, c := range counts {
			if float64(c)/float64(len(nonTrivial)) > 0.2 {
				score *= 0.6
				break
			}
		}
	}

	sentences := splitSentences(response)
	if len(sentences) > 0 {
		avgLen := float64(len(words)) / float64(len(sentences))
		if avgLen < 3 {
			score *= 0.7
		} else if avgLen > 50 {
			score *= 0.8
		}
	}

	if strings.Contains(response, "```") || strings.Contains(response, "\n\n") {
		score = clamp01(score * 1.1)
	}

	return score
}

// contentWords extracts lowercased tokens longer than 3 characters that
// are not stop words.
func contentWords(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('A' <= r && r <= 'Z') && !('0' <= r && r <= '9')
	})
	var out []string
	for _, f := range fields {
		lower := strings.ToLower(f)
		if len(lower) > 3 && !stopWords[lower] {
			out = append(out, lower)
		}
	}
	return out
}

func nonTrivialWords(words []string) []string {
	var out []string
	for _, w := range words {
		if len(strings.Trim(w, ".,!?;:\"'")) > 2 {
			out = append(out, w)
		}
	}
	return out
}

func hasSentenceTerminator(s string) bool {
	return strings.ContainsAny(s, ".!?")
}

func splitSentences(s string) []string {
	raw := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	var out []string
	for _, r := range raw {
		if strings.TrimSpace(r) != "" {
			out = append(out, r)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

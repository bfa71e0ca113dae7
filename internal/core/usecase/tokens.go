package usecase

import (
	"strings"
	"unicode"
)

// tokenizeText lowercases and splits on anything that is not a letter or a
// digit. Unicode-aware so Cyrillic and Latin queries tokenize the same way.
func tokenizeText(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

func tokenSet(s string) map[string]struct{} {
	tokens := tokenizeText(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

// tokenCoverage is the fraction of reference tokens present in candidate.
func tokenCoverage(reference, candidate map[string]struct{}) float64 {
	if len(reference) == 0 || len(candidate) == 0 {
		return 0
	}
	matches := 0
	for token := range reference {
		if _, ok := candidate[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(reference))
}

func jaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

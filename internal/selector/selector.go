// Package selector implements the response selector: it asks an Agent for
// several slightly-varied completions and scores them to pick the best one
// to dispatch back through a backend adapter.
package selector

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"
)

const defaultVariantCount = 3

var promptSuffixes = []string{"", " (respond briefly)", " (respond naturally)"}

// Agent is the minimal external-collaborator surface the selector needs:
// one-shot text generation for a prompt.
type Agent interface {
	GenerateText(ctx context.Context, prompt string, generationContext map[string]any) (string, error)
}

// SelectBest requests n variants of prompt from agent (n defaults to 3 when
// <= 0) using the fixed prompt suffixes, scores each non-empty result, and
// returns the highest-scoring candidate. Ties resolve to the lowest index.
// A candidate whose generation fails scores 0 rather than aborting the
// whole selection. If every candidate is empty, SelectBest returns "" and
// the caller must not dispatch it.
func SelectBest(ctx context.Context, agent Agent, prompt string, generationContext map[string]any, n int) string {
	if n <= 0 {
		n = defaultVariantCount
	}

	candidates := make([]string, 0, n)
	for i := 0; i < n; i++ {
		suffix := promptSuffixes[i%len(promptSuffixes)]
		text, err := agent.GenerateText(ctx, prompt+suffix, generationContext)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		candidates = append(candidates, strings.TrimSpace(text))
	}

	if len(candidates) == 0 {
		return ""
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	return selectBest(candidates)
}

func selectBest(candidates []string) string {
	type scored struct {
		index int
		score float64
		text  string
	}

	results := make([]scored, len(candidates))
	for i, c := range candidates {
		results[i] = scored{index: i, score: scoreCandidate(c, candidates), text: c}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].index < results[j].index
	})

	return results[0].text
}

func scoreCandidate(candidate string, all []string) float64 {
	score := 0.0

	length := utf8.RuneCountInString(candidate)
	switch {
	case length >= 20 && length <= 150:
		score += 0.4
	case (length >= 10 && length < 20) || (length > 150 && length <= 200):
		score += 0.2
	default:
		score += 0.1
	}

	score += (1.0 - meanJaccardSimilarity(candidate, all)) * 0.3

	if !isRepetitive(candidate) {
		score += 0.3
	}

	return score
}

func meanJaccardSimilarity(candidate string, all []string) float64 {
	others := make([]string, 0, len(all)-1)
	for _, c := range all {
		if c != candidate {
			others = append(others, c)
		}
	}
	if len(others) == 0 {
		return 0
	}

	total := 0.0
	for _, other := range others {
		total += jaccardSimilarity(candidate, other)
	}
	return total / float64(len(others))
}

func jaccardSimilarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	union := map[string]struct{}{}
	for w := range wordsA {
		union[w] = struct{}{}
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	for w := range wordsB {
		union[w] = struct{}{}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}

func wordSet(s string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

// isRepetitive reports whether any word appears 3 or more times within the
// candidate's first 20 words.
func isRepetitive(s string) bool {
	words := strings.Fields(strings.ToLower(s))
	if len(words) > 20 {
		words = words[:20]
	}

	counts := map[string]int{}
	for _, w := range words {
		counts[w]++
		if counts[w] >= 3 {
			return true
		}
	}
	return false
}

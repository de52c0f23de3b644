package ui

import (
	"sort"
	"strings"
)

const (
	// DefaultMaxDistance is the largest edit distance reported as a suggestion
	DefaultMaxDistance = 3
	// DefaultMaxSuggestions caps the suggestions returned per name
	DefaultMaxSuggestions = 3
)

// SuggestOptions configures FindSimilar
type SuggestOptions struct {
	MaxDistance    int
	MaxSuggestions int
	CaseSensitive  bool
}

// FindSimilar returns the candidates within edit distance of target,
// closest first. Ties keep candidate order.
func FindSimilar(target string, candidates []string, opts *SuggestOptions) []string {
	o := SuggestOptions{MaxDistance: DefaultMaxDistance, MaxSuggestions: DefaultMaxSuggestions}
	if opts != nil {
		o.CaseSensitive = opts.CaseSensitive
		if opts.MaxDistance > 0 {
			o.MaxDistance = opts.MaxDistance
		}
		if opts.MaxSuggestions > 0 {
			o.MaxSuggestions = opts.MaxSuggestions
		}
	}

	type match struct {
		value    string
		distance int
	}
	var matches []match
	for _, c := range candidates {
		a, b := target, c
		if !o.CaseSensitive {
			a, b = strings.ToLower(a), strings.ToLower(b)
		}
		if d := EditDistance(a, b); d <= o.MaxDistance {
			matches = append(matches, match{value: c, distance: d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	out := make([]string, 0, o.MaxSuggestions)
	for i := 0; i < len(matches) && i < o.MaxSuggestions; i++ {
		out = append(out, matches[i].value)
	}
	return out
}

// EditDistance returns the Levenshtein distance between two strings
func EditDistance(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}

	// Two rolling rows of the edit matrix
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = minInt(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

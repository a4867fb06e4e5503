// Package skills holds the canonical skill namespace shared by internships,
// resumes and user queries.
package skills

import (
	"math"
	"sort"
	"strings"
)

const separator = ","

// Parse splits a comma separated string and normalizes the tokens.
func Parse(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	return Normalize(strings.Split(s, separator))
}

// Normalize lowercases and trims every item, drops empty ones and removes
// duplicates. The first occurrence wins and input order is preserved.
func Normalize(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		token := strings.ToLower(strings.TrimSpace(item))
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

// Set is an unordered collection of normalized skills.
type Set map[string]struct{}

func NewSet(items []string) Set {
	set := make(Set, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func (s Set) Has(skill string) bool {
	_, ok := s[skill]
	return ok
}

// ContainsAll reports whether every item is present in the set.
func (s Set) ContainsAll(items []string) bool {
	for _, item := range items {
		if !s.Has(item) {
			return false
		}
	}
	return true
}

// Matched returns the sorted required skills present in user.
func Matched(user, required []string) []string {
	userSet := NewSet(user)
	out := make([]string, 0)
	for skill := range NewSet(required) {
		if userSet.Has(skill) {
			out = append(out, skill)
		}
	}
	sort.Strings(out)
	return out
}

// Missing returns the sorted required skills absent from user.
func Missing(user, required []string) []string {
	userSet := NewSet(user)
	out := make([]string, 0)
	for skill := range NewSet(required) {
		if !userSet.Has(skill) {
			out = append(out, skill)
		}
	}
	sort.Strings(out)
	return out
}

// Vector encodes skills as a binary vector over vocabulary.
// Skills outside the vocabulary are ignored.
func Vector(items []string, vocabulary []string) []float64 {
	set := NewSet(items)
	vec := make([]float64, len(vocabulary))
	for idx, skill := range vocabulary {
		if set.Has(skill) {
			vec[idx] = 1
		}
	}
	return vec
}

// Cosine returns the cosine similarity of a and b, or 0 when either vector
// has no non-zero component.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for _, v := range a {
		normA += v * v
	}
	for _, v := range b {
		normB += v * v
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}

	sim := dot / math.Sqrt(normA*normB)
	if sim > 1 {
		sim = 1
	}
	return sim
}

// Package rules mines association rules between skills required by
// internships and scores user skill sets against them.
package rules

import (
	"math"
	"sort"

	"github.com/spigell/internship-recommender/internal/apperr"
	"github.com/spigell/internship-recommender/internal/skills"
)

// Params control itemset mining and rule selection.
type Params struct {
	MinSupport float64
	MinLift    float64
	// MaxLen caps the itemset size. Zero means no limit.
	MaxLen int
}

func DefaultParams() Params {
	return Params{MinSupport: 0.05, MinLift: 1.0}
}

func (p Params) validate() error {
	if math.IsNaN(p.MinSupport) || p.MinSupport <= 0 || p.MinSupport > 1 {
		return apperr.Newf(apperr.ErrInvalidInput, "min support must be in (0, 1], got %v", p.MinSupport)
	}
	if math.IsNaN(p.MinLift) || p.MinLift < 0 {
		return apperr.Newf(apperr.ErrInvalidInput, "min lift must be non-negative, got %v", p.MinLift)
	}
	if p.MaxLen < 0 {
		return apperr.Newf(apperr.ErrInvalidInput, "max itemset length must be non-negative, got %d", p.MaxLen)
	}
	return nil
}

// Rule states that internships requiring Antecedent tend to require Consequent.
type Rule struct {
	Antecedent []string `json:"antecedent"`
	Consequent []string `json:"consequent"`
	Lift       float64  `json:"lift"`
}

// Model is the immutable result of a Fit call.
type Model struct {
	Vocabulary       []string           `json:"vocabulary"`
	Rules            []Rule             `json:"rules"`
	Frequency        map[string]float64 `json:"frequency"`
	TransactionCount int                `json:"transaction_count"`
}

// Fit mines rules from the required skill lists of an internship corpus.
// An empty vocabulary produces an empty, valid model.
func Fit(requiredSkills [][]string, params Params) (*Model, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	transactions := make([][]string, 0, len(requiredSkills))
	for _, list := range requiredSkills {
		transactions = append(transactions, skills.Normalize(list))
	}

	model := &Model{
		Vocabulary:       vocabulary(transactions),
		Rules:            []Rule{},
		Frequency:        map[string]float64{},
		TransactionCount: len(transactions),
	}
	if len(model.Vocabulary) == 0 {
		return model, nil
	}

	enc := encode(transactions, model.Vocabulary)

	total := float64(max(1, len(transactions)))
	for idx, skill := range model.Vocabulary {
		model.Frequency[skill] = float64(enc.items[idx].count()) / total
	}

	levels := enc.frequentItemsets(params.MinSupport, params.MaxLen)
	model.Rules = deriveRules(levels, enc.support, model.Vocabulary, params.MinLift)

	return model, nil
}

func vocabulary(transactions [][]string) []string {
	seen := make(map[string]struct{})
	for _, list := range transactions {
		for _, skill := range list {
			seen[skill] = struct{}{}
		}
	}
	vocab := make([]string, 0, len(seen))
	for skill := range seen {
		vocab = append(vocab, skill)
	}
	sort.Strings(vocab)
	return vocab
}

// Score sums the lift of every rule whose antecedent is covered by user and
// whose consequent is covered by required.
func (m *Model) Score(user, required skills.Set) float64 {
	if m == nil || len(m.Rules) == 0 {
		return 0
	}
	score := 0.0
	for _, rule := range m.Rules {
		if user.ContainsAll(rule.Antecedent) && required.ContainsAll(rule.Consequent) {
			score += rule.Lift
		}
	}
	return score
}

// FrequencyScore is the mean corpus frequency of the given skills.
func (m *Model) FrequencyScore(list []string) float64 {
	if m == nil || len(list) == 0 {
		return 0
	}
	sum := 0.0
	for _, skill := range list {
		sum += m.Frequency[skill]
	}
	return sum / float64(len(list))
}

func (m *Model) RuleCount() int {
	if m == nil {
		return 0
	}
	return len(m.Rules)
}

package rules

import (
	"math"

	"github.com/spigell/internship-recommender/internal/apperr"
	"github.com/spigell/internship-recommender/internal/skills"
)

// Validate checks that the vocabulary, rules and frequency table describe the
// same corpus. A loaded model that fails validation must be retrained.
func (m *Model) Validate() error {
	if m == nil {
		return apperr.New(apperr.ErrArtifactCorrupt, "rules model is empty")
	}

	for idx, skill := range m.Vocabulary {
		if skill == "" {
			return apperr.Newf(apperr.ErrArtifactCorrupt, "vocabulary entry %d is empty", idx)
		}
		if idx > 0 && m.Vocabulary[idx-1] >= skill {
			return apperr.Newf(apperr.ErrArtifactCorrupt, "vocabulary is not sorted and unique at %q", skill)
		}
	}
	vocab := skills.NewSet(m.Vocabulary)

	for idx, rule := range m.Rules {
		if len(rule.Antecedent) == 0 || len(rule.Consequent) == 0 {
			return apperr.Newf(apperr.ErrArtifactCorrupt, "rule %d has an empty side", idx)
		}
		if !vocab.ContainsAll(rule.Antecedent) || !vocab.ContainsAll(rule.Consequent) {
			return apperr.Newf(apperr.ErrArtifactCorrupt, "rule %d references skills outside the vocabulary", idx)
		}
		ante := skills.NewSet(rule.Antecedent)
		for _, skill := range rule.Consequent {
			if ante.Has(skill) {
				return apperr.Newf(apperr.ErrArtifactCorrupt, "rule %d has %q on both sides", idx, skill)
			}
		}
		if math.IsNaN(rule.Lift) || math.IsInf(rule.Lift, 0) || rule.Lift < 0 {
			return apperr.Newf(apperr.ErrArtifactCorrupt, "rule %d has invalid lift %v", idx, rule.Lift)
		}
	}

	if len(m.Frequency) != len(m.Vocabulary) {
		return apperr.Newf(apperr.ErrArtifactCorrupt, "frequency table has %d entries for %d skills", len(m.Frequency), len(m.Vocabulary))
	}
	for skill, freq := range m.Frequency {
		if !vocab.Has(skill) {
			return apperr.Newf(apperr.ErrArtifactCorrupt, "frequency table references unknown skill %q", skill)
		}
		if math.IsNaN(freq) || freq < 0 || freq > 1 {
			return apperr.Newf(apperr.ErrArtifactCorrupt, "frequency of %q is out of range: %v", skill, freq)
		}
	}

	return nil
}

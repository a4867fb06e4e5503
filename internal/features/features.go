// Package features turns (user, internship) pairs into scored candidates and
// the fixed feature vectors consumed by the ranking model.
package features

import (
	"github.com/spigell/internship-recommender/internal/dataset"
	"github.com/spigell/internship-recommender/internal/rules"
	"github.com/spigell/internship-recommender/internal/skills"
)

// Candidate is one internship scored against one skill set. It only lives for
// the duration of a single request or training pass.
type Candidate struct {
	Index      int
	Internship *dataset.Internship
	// RuleScore is the association rule score, or the matched skill count
	// when no rule applies.
	RuleScore      float64
	FrequencyScore float64
	Similarity     float64
	Matched        []string
	Missing        []string
}

// Vector is the ranking model input. Field order is the column order of the
// model and must not change without a new ranker artifact version.
type Vector struct {
	MatchedCount      float64
	MissingCount      float64
	Similarity        float64
	RuleScore         float64
	RequiredCount     float64
	PreferredCount    float64
	FrequencyScore    float64
	CompanyPopularity float64
	TitlePopularity   float64
}

// Count is the number of columns in a Vector.
const Count = 9

var names = [Count]string{
	"matched_skill_count",
	"missing_skill_count",
	"skill_similarity",
	"cf_score",
	"required_skill_count",
	"preferred_skill_count",
	"freq_score",
	"company_score",
	"title_score",
}

// Names returns the column names in model order.
func Names() []string {
	out := make([]string, Count)
	copy(out, names[:])
	return out
}

// Values returns the columns in model order.
func (v Vector) Values() []float64 {
	return []float64{
		v.MatchedCount,
		v.MissingCount,
		v.Similarity,
		v.RuleScore,
		v.RequiredCount,
		v.PreferredCount,
		v.FrequencyScore,
		v.CompanyPopularity,
		v.TitlePopularity,
	}
}

// Score rates every internship against userSkills. Internships with no
// required skills are kept with zero similarity and zero rule score.
func Score(model *rules.Model, internships *dataset.Internships, userSkills []string) []Candidate {
	if internships == nil {
		return []Candidate{}
	}

	var vocab []string
	if model != nil {
		vocab = model.Vocabulary
	}

	userSet := skills.NewSet(userSkills)
	userVec := skills.Vector(userSkills, vocab)

	out := make([]Candidate, 0, internships.Len())
	for idx, item := range internships.Items {
		required := item.RequiredSkills
		matched := skills.Matched(userSkills, required)

		ruleScore := model.Score(userSet, skills.NewSet(required))
		if ruleScore <= 0 {
			ruleScore = float64(len(matched))
		}

		out = append(out, Candidate{
			Index:          idx,
			Internship:     item,
			RuleScore:      ruleScore,
			FrequencyScore: model.FrequencyScore(required),
			Similarity:     skills.Cosine(userVec, skills.Vector(required, vocab)),
			Matched:        matched,
			Missing:        skills.Missing(userSkills, required),
		})
	}
	return out
}

// Build assembles the feature vector of c.
func Build(c Candidate, popularity dataset.Popularity) Vector {
	return Vector{
		MatchedCount:      float64(len(c.Matched)),
		MissingCount:      float64(len(c.Missing)),
		Similarity:        c.Similarity,
		RuleScore:         c.RuleScore,
		RequiredCount:     float64(len(c.Internship.RequiredSkills)),
		PreferredCount:    float64(len(c.Internship.PreferredSkills)),
		FrequencyScore:    c.FrequencyScore,
		CompanyPopularity: popularity.CompanyScore(c.Internship.Company),
		TitlePopularity:   popularity.TitleScore(c.Internship.Title),
	}
}

// Table builds the feature rows of candidates in order.
func Table(candidates []Candidate, popularity dataset.Popularity) [][]float64 {
	rows := make([][]float64, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, Build(c, popularity).Values())
	}
	return rows
}

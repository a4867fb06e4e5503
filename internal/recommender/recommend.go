package recommender

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/apperr"
	"github.com/spigell/internship-recommender/internal/dataset"
	"github.com/spigell/internship-recommender/internal/features"
	"github.com/spigell/internship-recommender/internal/filtering"
	"github.com/spigell/internship-recommender/internal/logger"
	"github.com/spigell/internship-recommender/internal/skills"
)

const (
	DefaultTopN = 5

	ruleWeight    = 0.5
	rankingWeight = 0.5

	maxInputLogLength = 120
)

// Recommendation is one ranked internship for a query.
type Recommendation struct {
	InternshipTitle   string   `json:"internship_title"`
	Company           string   `json:"company"`
	Location          string   `json:"location"`
	MinimumExperience string   `json:"minimum_experience"`
	RequiredSkills    []string `json:"required_skills"`
	PreferredSkills   []string `json:"preferred_skills"`
	MatchedSkills     []string `json:"matched_skills"`
	MissingSkills     []string `json:"missing_skills"`
	// CFScore is the rule score min-max normalized across the query batch.
	CFScore         float64 `json:"cf_score"`
	RankingScore    float64 `json:"ranking_score"`
	FinalScore      float64 `json:"final_score"`
	MatchPercentage float64 `json:"match_percentage"`

	internship *dataset.Internship
}

// Internship returns the record the recommendation was built from.
func (r Recommendation) Internship() *dataset.Internship {
	return r.internship
}

// Recommend ranks every internship against the comma separated skills in
// input and returns at most topN of them, best first. Steps run over the full
// ranked list before truncation.
func (r *Recommender) Recommend(input string, topN int, steps ...filtering.Filter) ([]Recommendation, error) {
	if topN < 0 {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "top n must not be negative, got %d", topN)
	}

	userSkills := skills.Parse(input)
	if len(userSkills) == 0 {
		r.logger.Debug("no usable skills in input", zap.String("input", logger.TruncateForLog(input, maxInputLogLength)))
		return []Recommendation{}, nil
	}

	snap, err := r.ensureTrained()
	if err != nil {
		return nil, err
	}

	candidates := features.Score(snap.Rules, r.bundle.Internships, userSkills)
	if len(candidates) == 0 {
		return []Recommendation{}, nil
	}

	ranking, err := snap.Ranker.Predict(features.Table(candidates, r.bundle.Popularity))
	if err != nil {
		return nil, fmt.Errorf("predict ranking scores: %w", err)
	}

	normalized := minMax(candidates)
	recs := make([]Recommendation, 0, len(candidates))
	for i, c := range candidates {
		recs = append(recs, Recommendation{
			InternshipTitle:   c.Internship.Title,
			Company:           c.Internship.Company,
			Location:          c.Internship.Location,
			MinimumExperience: c.Internship.MinimumExperience,
			RequiredSkills:    c.Internship.RequiredSkills,
			PreferredSkills:   c.Internship.PreferredSkills,
			MatchedSkills:     c.Matched,
			MissingSkills:     c.Missing,
			CFScore:           normalized[i],
			RankingScore:      ranking[i],
			FinalScore:        ruleWeight*normalized[i] + rankingWeight*ranking[i],
			MatchPercentage:   round2(c.Similarity * 100),
			internship:        c.Internship,
		})
	}

	// Stable so equal scores keep corpus order.
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].FinalScore > recs[j].FinalScore
	})

	recs, _, err = filtering.Run(filtering.New(steps, r.logger), recs, Recommendation.Internship)
	if err != nil {
		return nil, fmt.Errorf("filter recommendations: %w", err)
	}

	if len(recs) > topN {
		recs = recs[:topN]
	}

	logger.WithSnapshot(r.logger, snap.ID, "").Debug("recommendations ranked",
		zap.Strings("skills", userSkills),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(recs)),
	)

	return recs, nil
}

// minMax scales rule scores to [0, 1]. A flat batch maps to all zeros.
func minMax(candidates []features.Candidate) []float64 {
	out := make([]float64, len(candidates))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range candidates {
		lo = math.Min(lo, c.RuleScore)
		hi = math.Max(hi, c.RuleScore)
	}
	if hi == lo {
		return out
	}
	for i, c := range candidates {
		out[i] = (c.RuleScore - lo) / (hi - lo)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

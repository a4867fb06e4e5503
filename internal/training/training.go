// Package training synthesizes labeled ranking samples from historical resumes.
package training

import (
	"sort"

	"github.com/spigell/internship-recommender/internal/dataset"
	"github.com/spigell/internship-recommender/internal/features"
	"github.com/spigell/internship-recommender/internal/skills"
)

const (
	DefaultMaxPerResume   = 30
	DefaultLabelThreshold = 0.6
)

// ScoreFunc scores every internship against a normalized skill list.
type ScoreFunc func(userSkills []string) []features.Candidate

type Options struct {
	// MaxPerResume bounds how many top candidates one resume contributes.
	MaxPerResume int
	// LabelThreshold is the minimum share of required skills a resume must
	// cover for the pair to be labeled relevant.
	LabelThreshold float64
}

func DefaultOptions() Options {
	return Options{MaxPerResume: DefaultMaxPerResume, LabelThreshold: DefaultLabelThreshold}
}

type Sample struct {
	Features features.Vector
	Label    float64
}

// Label returns 1 when matched covers at least threshold of required, else 0.
func Label(matched, required int, threshold float64) float64 {
	coverage := float64(matched) / float64(max(1, required))
	if coverage >= threshold {
		return 1
	}
	return 0
}

// Synthesize builds one sample per (resume, kept candidate) pair. Resumes
// without skills or without candidates contribute nothing.
func Synthesize(resumes []*dataset.Resume, score ScoreFunc, popularity dataset.Popularity, opts Options) []Sample {
	if opts.MaxPerResume <= 0 {
		opts.MaxPerResume = DefaultMaxPerResume
	}

	samples := make([]Sample, 0)
	for _, resume := range resumes {
		if resume == nil {
			continue
		}
		userSkills := skills.Normalize(resume.Skills)
		if len(userSkills) == 0 {
			continue
		}

		candidates := score(userSkills)
		if len(candidates) == 0 {
			continue
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].RuleScore != candidates[j].RuleScore {
				return candidates[i].RuleScore > candidates[j].RuleScore
			}
			return candidates[i].Similarity > candidates[j].Similarity
		})
		if len(candidates) > opts.MaxPerResume {
			candidates = candidates[:opts.MaxPerResume]
		}

		for _, c := range candidates {
			samples = append(samples, Sample{
				Features: features.Build(c, popularity),
				Label:    Label(len(c.Matched), len(c.Internship.RequiredSkills), opts.LabelThreshold),
			})
		}
	}
	return samples
}

// Split returns the feature table and label column of samples.
func Split(samples []Sample) ([][]float64, []float64) {
	x := make([][]float64, 0, len(samples))
	y := make([]float64, 0, len(samples))
	for _, s := range samples {
		x = append(x, s.Features.Values())
		y = append(y, s.Label)
	}
	return x, y
}

// Positives counts samples labeled relevant.
func Positives(samples []Sample) int {
	n := 0
	for _, s := range samples {
		if s.Label > 0 {
			n++
		}
	}
	return n
}

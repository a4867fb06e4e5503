package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/internship-recommender/internal/apperr"
	"github.com/spigell/internship-recommender/internal/skills"
)

var threeInternships = [][]string{
	{"python", "sql"},
	{"python", "react"},
	{"java", "spring"},
}

func TestFitThreeInternships(t *testing.T) {
	t.Parallel()

	model, err := Fit(threeInternships, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, []string{"java", "python", "react", "spring", "sql"}, model.Vocabulary)
	assert.Equal(t, 3, model.TransactionCount)
	assert.InDelta(t, 2.0/3.0, model.Frequency["python"], 1e-12)
	assert.InDelta(t, 1.0/3.0, model.Frequency["java"], 1e-12)

	require.Len(t, model.Rules, 6)
	assert.Equal(t, Rule{Antecedent: []string{"java"}, Consequent: []string{"spring"}, Lift: 3}, model.Rules[0])
	assert.Equal(t, []string{"spring"}, model.Rules[1].Antecedent)
	assert.Equal(t, []string{"python"}, model.Rules[2].Antecedent)
	assert.Equal(t, []string{"react"}, model.Rules[2].Consequent)
	assert.InDelta(t, 1.5, model.Rules[5].Lift, 1e-12)
	assert.Equal(t, []string{"sql"}, model.Rules[5].Antecedent)

	require.NoError(t, model.Validate())
}

func TestScore(t *testing.T) {
	t.Parallel()

	model, err := Fit(threeInternships, DefaultParams())
	require.NoError(t, err)

	user := skills.NewSet([]string{"python", "sql"})
	assert.InDelta(t, 3.0, model.Score(user, skills.NewSet(threeInternships[0])), 1e-12)
	assert.InDelta(t, 3.0, model.Score(user, skills.NewSet(threeInternships[1])), 1e-12)
	assert.Equal(t, 0.0, model.Score(user, skills.NewSet(threeInternships[2])))
	assert.Equal(t, 0.0, model.Score(user, skills.NewSet(nil)))
	assert.Equal(t, 0.0, model.Score(skills.NewSet(nil), skills.NewSet(threeInternships[0])))
}

func TestScoreIsMonotonicInUserSkills(t *testing.T) {
	t.Parallel()

	corpus := [][]string{
		{"go", "docker", "kubernetes"},
		{"go", "docker"},
		{"python", "docker", "sql"},
		{"python", "sql"},
		{"go", "kubernetes", "terraform"},
		{"python", "pandas", "sql"},
	}
	model, err := Fit(corpus, Params{MinSupport: 0.1, MinLift: 0})
	require.NoError(t, err)
	require.NotEmpty(t, model.Rules)

	order := model.Vocabulary
	for _, required := range corpus {
		requiredSet := skills.NewSet(required)
		var user []string
		prev := model.Score(skills.NewSet(user), requiredSet)
		for _, skill := range order {
			user = append(user, skill)
			next := model.Score(skills.NewSet(user), requiredSet)
			assert.GreaterOrEqual(t, next, prev)
			prev = next
		}
	}
}

func TestFitIsDeterministic(t *testing.T) {
	t.Parallel()

	corpus := [][]string{
		{"a", "b", "c"},
		{"a", "b"},
		{"b", "c"},
		{"a", "c"},
		{"a", "b", "c", "d"},
	}
	first, err := Fit(corpus, Params{MinSupport: 0.2, MinLift: 0})
	require.NoError(t, err)
	second, err := Fit(corpus, Params{MinSupport: 0.2, MinLift: 0})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFitThreeItemRules(t *testing.T) {
	t.Parallel()

	corpus := [][]string{
		{"a", "b", "c"},
		{"a", "b", "c"},
		{"d"},
	}
	model, err := Fit(corpus, Params{MinSupport: 0.5, MinLift: 0})
	require.NoError(t, err)

	// 3 pairs * 2 directions + 6 splits of {a, b, c}
	require.Len(t, model.Rules, 12)
	last := model.Rules[len(model.Rules)-1]
	assert.Equal(t, []string{"b", "c"}, last.Antecedent)
	assert.Equal(t, []string{"a"}, last.Consequent)
	assert.InDelta(t, 1.5, last.Lift, 1e-12)

	capped, err := Fit(corpus, Params{MinSupport: 0.5, MinLift: 0, MaxLen: 2})
	require.NoError(t, err)
	assert.Len(t, capped.Rules, 6)
}

func TestFitMinLiftFiltersRules(t *testing.T) {
	t.Parallel()

	model, err := Fit(threeInternships, Params{MinSupport: 0.05, MinLift: 2})
	require.NoError(t, err)
	require.Len(t, model.Rules, 2)
	for _, rule := range model.Rules {
		assert.InDelta(t, 3.0, rule.Lift, 1e-12)
	}
}

func TestFitEmptyCorpus(t *testing.T) {
	t.Parallel()

	for _, corpus := range [][][]string{nil, {{}, {}}} {
		model, err := Fit(corpus, DefaultParams())
		require.NoError(t, err)
		assert.Empty(t, model.Vocabulary)
		assert.Empty(t, model.Rules)
		assert.Empty(t, model.Frequency)
		assert.NoError(t, model.Validate())
		assert.Equal(t, 0.0, model.Score(skills.NewSet([]string{"go"}), skills.NewSet([]string{"go"})))
	}
}

func TestFitInvalidParams(t *testing.T) {
	t.Parallel()

	for _, params := range []Params{
		{MinSupport: 0, MinLift: 1},
		{MinSupport: 1.5, MinLift: 1},
		{MinSupport: 0.1, MinLift: -1},
		{MinSupport: 0.1, MaxLen: -1},
	} {
		_, err := Fit(threeInternships, params)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	}
}

func TestFrequencyScore(t *testing.T) {
	t.Parallel()

	model, err := Fit(threeInternships, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, 0.0, model.FrequencyScore(nil))
	assert.InDelta(t, 0.5, model.FrequencyScore([]string{"python", "sql"}), 1e-12)
	assert.InDelta(t, 1.0/6.0, model.FrequencyScore([]string{"java", "unknown"}), 1e-12)
}

func TestValidateRejectsCorruptModels(t *testing.T) {
	t.Parallel()

	valid := func() *Model {
		model, err := Fit(threeInternships, DefaultParams())
		require.NoError(t, err)
		return model
	}

	tests := []struct {
		name   string
		mutate func(m *Model)
	}{
		{name: "unknown rule skill", mutate: func(m *Model) { m.Rules[0].Consequent = []string{"cobol"} }},
		{name: "empty antecedent", mutate: func(m *Model) { m.Rules[0].Antecedent = nil }},
		{name: "overlapping sides", mutate: func(m *Model) { m.Rules[0].Consequent = []string{"java"} }},
		{name: "negative lift", mutate: func(m *Model) { m.Rules[0].Lift = -1 }},
		{name: "unsorted vocabulary", mutate: func(m *Model) { m.Vocabulary[0], m.Vocabulary[1] = m.Vocabulary[1], m.Vocabulary[0] }},
		{name: "frequency mismatch", mutate: func(m *Model) { delete(m.Frequency, "java") }},
		{name: "frequency out of range", mutate: func(m *Model) { m.Frequency["java"] = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			model := valid()
			tt.mutate(model)
			assert.ErrorIs(t, model.Validate(), apperr.ErrArtifactCorrupt)
		})
	}

	var nilModel *Model
	assert.ErrorIs(t, nilModel.Validate(), apperr.ErrArtifactCorrupt)
}

package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/internship-recommender/internal/apperr"
	"github.com/spigell/internship-recommender/internal/features"
	"github.com/spigell/internship-recommender/internal/forest"
	"github.com/spigell/internship-recommender/internal/rules"
)

func rulesModel(t *testing.T) *rules.Model {
	t.Helper()
	model, err := rules.Fit([][]string{{"python", "sql"}, {"python", "react"}, {"java", "spring"}}, rules.DefaultParams())
	require.NoError(t, err)
	return model
}

func rankingModel(t *testing.T) *forest.Forest {
	t.Helper()
	x := make([][]float64, 0, 10)
	y := make([]float64, 0, 10)
	for i := 0; i < 10; i++ {
		row := make([]float64, features.Count)
		row[0] = float64(i)
		x = append(x, row)
		y = append(y, float64(i%2))
	}
	f, err := forest.Fit(x, y, forest.Params{Trees: 3, MinSamplesSplit: 2, MinSamplesLeaf: 1, Seed: 1})
	require.NoError(t, err)
	return f
}

func TestRulesRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewStore(filepath.Join(t.TempDir(), "models"))
	model := rulesModel(t)

	saved, err := store.SaveRules(model)
	require.NoError(t, err)
	assert.Equal(t, KindRules, saved.Kind)
	_, err = uuid.Parse(saved.SnapshotID)
	require.NoError(t, err)

	loaded, meta, err := store.LoadRules()
	require.NoError(t, err)
	assert.Equal(t, model, loaded)
	assert.Equal(t, saved.SnapshotID, meta.SnapshotID)
	assert.True(t, saved.CreatedAt.Equal(meta.CreatedAt))
}

func TestRankerRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	f := rankingModel(t)
	rulesID := uuid.NewString()

	saved, err := store.SaveRanker(f, rulesID)
	require.NoError(t, err)
	assert.Equal(t, rulesID, saved.RulesID)

	loaded, meta, err := store.LoadRanker()
	require.NoError(t, err)
	assert.Equal(t, saved.SnapshotID, meta.SnapshotID)
	assert.Equal(t, rulesID, meta.RulesID)
	assert.Equal(t, f.Features, loaded.Features)
	assert.Equal(t, f.Len(), loaded.Len())

	row := make([]float64, features.Count)
	want, err := f.Predict([][]float64{row})
	require.NoError(t, err)
	got, err := loaded.Predict([][]float64{row})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()

	store := NewStore(filepath.Join(t.TempDir(), "absent"))

	_, _, err := store.LoadRules()
	assert.ErrorIs(t, err, apperr.ErrArtifactMissing)
	_, _, err = store.LoadRanker()
	assert.ErrorIs(t, err, apperr.ErrArtifactMissing)
	_, err = store.Manifest()
	assert.ErrorIs(t, err, apperr.ErrArtifactMissing)

	// Rules alone do not make a ranker.
	_, err = store.SaveRules(rulesModel(t))
	require.NoError(t, err)
	_, _, err = store.LoadRanker()
	assert.ErrorIs(t, err, apperr.ErrArtifactMissing)
}

func TestManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(dir)

	rulesMeta, err := store.SaveRules(rulesModel(t))
	require.NoError(t, err)
	rankerMeta, err := store.SaveRanker(rankingModel(t), rulesMeta.SnapshotID)
	require.NoError(t, err)

	manifest, err := store.Manifest()
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, manifest.FormatVersion)
	require.Len(t, manifest.Artifacts, 2)
	assert.Equal(t, rulesMeta.SnapshotID, manifest.Artifacts[KindRules].SnapshotID)
	assert.Equal(t, rankerMeta.SnapshotID, manifest.Artifacts[KindRanker].SnapshotID)
	assert.Equal(t, rulesMeta.SnapshotID, manifest.Artifacts[KindRanker].RulesID)
	assert.Empty(t, manifest.Artifacts[KindRules].RulesID)

	data, err := os.ReadFile(filepath.Join(dir, RulesFile))
	require.NoError(t, err)
	assert.Equal(t, checksum(data), manifest.Artifacts[KindRules].SHA256)
	assert.Equal(t, int64(len(data)), manifest.Artifacts[KindRules].Size)
	assert.Equal(t, FormatVersion, manifest.Artifacts[KindRules].FormatVersion)

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestLoadDetectsTampering(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(dir)
	_, err := store.SaveRules(rulesModel(t))
	require.NoError(t, err)

	path := filepath.Join(dir, RulesFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, ' '), 0o644))

	_, _, err = store.LoadRules()
	assert.ErrorIs(t, err, apperr.ErrArtifactCorrupt)
}

func TestLoadWithoutManifestIsCorrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(dir)
	_, err := store.SaveRules(rulesModel(t))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, ManifestFile)))

	_, _, err = store.LoadRules()
	assert.ErrorIs(t, err, apperr.ErrArtifactCorrupt)
}

func TestSaveRejectsInvalidModels(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	_, err := store.SaveRules(&rules.Model{Vocabulary: []string{"b", "a"}})
	assert.ErrorIs(t, err, apperr.ErrArtifactCorrupt)
	_, err = store.SaveRanker(&forest.Forest{}, uuid.NewString())
	assert.ErrorIs(t, err, apperr.ErrArtifactCorrupt)
	_, err = store.SaveRanker(rankingModel(t), "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestLoadRankerWithoutRulesID(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(dir)
	f := rankingModel(t)

	raw, err := json.Marshal(f)
	require.NoError(t, err)
	data, err := json.Marshal(Envelope{
		FormatVersion: FormatVersion,
		Kind:          KindRanker,
		SnapshotID:    uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		Payload:       raw,
	})
	require.NoError(t, err)
	require.NoError(t, writeAtomic(dir, RankerFile, data))

	m := newManifest()
	m.Artifacts[KindRanker] = Entry{File: RankerFile, FormatVersion: FormatVersion, SHA256: checksum(data), Size: int64(len(data))}
	require.NoError(t, store.writeManifest(m))

	_, _, err = store.LoadRanker()
	assert.ErrorIs(t, err, apperr.ErrArtifactCorrupt)
}

func TestSaveRebuildsUndecodableManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte("artifacts: ["), 0o644))

	saved, err := store.SaveRules(rulesModel(t))
	require.NoError(t, err)

	manifest, err := store.Manifest()
	require.NoError(t, err)
	require.Len(t, manifest.Artifacts, 1)
	assert.Equal(t, saved.SnapshotID, manifest.Artifacts[KindRules].SnapshotID)
}

func TestSaveFailsOnUnreadableManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(dir)
	rulesMeta, err := store.SaveRules(rulesModel(t))
	require.NoError(t, err)

	// A directory in place of the manifest gives a read error that is not "missing".
	manifestPath := filepath.Join(dir, ManifestFile)
	require.NoError(t, os.Remove(manifestPath))
	require.NoError(t, os.Mkdir(manifestPath, 0o755))

	_, err = store.SaveRanker(rankingModel(t), rulesMeta.SnapshotID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperr.ErrArtifactCorrupt)
	assert.NotErrorIs(t, err, apperr.ErrArtifactMissing)

	info, err := os.Stat(manifestPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDecode(t *testing.T) {
	t.Parallel()

	envelope := func(mutate func(e *Envelope)) []byte {
		e := Envelope{
			FormatVersion: FormatVersion,
			Kind:          KindRules,
			SnapshotID:    uuid.NewString(),
			CreatedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Payload:       json.RawMessage(`{"vocabulary":[]}`),
		}
		if mutate != nil {
			mutate(&e)
		}
		data, err := json.Marshal(e)
		require.NoError(t, err)
		return data
	}

	var model rules.Model
	meta, err := decode(KindRules, envelope(nil), &model)
	require.NoError(t, err)
	assert.Equal(t, KindRules, meta.Kind)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "not json", data: []byte("{")},
		{name: "future version", data: envelope(func(e *Envelope) { e.FormatVersion = FormatVersion + 1 })},
		{name: "wrong kind", data: envelope(func(e *Envelope) { e.Kind = KindRanker })},
		{name: "bad snapshot id", data: envelope(func(e *Envelope) { e.SnapshotID = "nope" })},
		{name: "no payload", data: envelope(func(e *Envelope) { e.Payload = nil })},
		{name: "payload type mismatch", data: envelope(func(e *Envelope) { e.Payload = json.RawMessage(`[1]`) })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var into rules.Model
			_, err := decode(KindRules, tt.data, &into)
			assert.ErrorIs(t, err, apperr.ErrArtifactCorrupt)
		})
	}
}

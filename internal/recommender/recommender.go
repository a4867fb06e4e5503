// Package recommender coordinates training and serving of the hybrid
// internship ranking pipeline.
package recommender

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spigell/internship-recommender/internal/apperr"
	"github.com/spigell/internship-recommender/internal/artifact"
	"github.com/spigell/internship-recommender/internal/dataset"
	"github.com/spigell/internship-recommender/internal/features"
	"github.com/spigell/internship-recommender/internal/forest"
	"github.com/spigell/internship-recommender/internal/logger"
	"github.com/spigell/internship-recommender/internal/rules"
	"github.com/spigell/internship-recommender/internal/training"
)

const bootstrapKey = "bootstrap"

type Options struct {
	Rules    rules.Params
	Forest   forest.Params
	Training training.Options
}

func DefaultOptions() Options {
	return Options{
		Rules:    rules.DefaultParams(),
		Forest:   forest.DefaultParams(),
		Training: training.DefaultOptions(),
	}
}

// Snapshot is one consistent pair of trained models. It is never mutated
// after being published.
type Snapshot struct {
	ID         string
	Rules      *rules.Model
	RulesMeta  artifact.Meta
	Ranker     *forest.Forest
	RankerMeta artifact.Meta
}

func (s *Snapshot) complete() bool {
	return s != nil && s.Rules != nil && s.Ranker != nil
}

// TrainSummary reports what a Train call did.
type TrainSummary struct {
	RulesRetrained  bool
	RankerRetrained bool
	SampleCount     int
	PositiveCount   int
	RuleCount       int
	VocabularySize  int
	SnapshotID      string
	Duration        time.Duration
	// Artifacts is the stored manifest by kind, empty without a store.
	Artifacts map[string]artifact.Entry
}

func (s *TrainSummary) Map() map[string]any {
	m := map[string]any{
		"rules_retrained":  s.RulesRetrained,
		"ranker_retrained": s.RankerRetrained,
		"samples":          s.SampleCount,
		"positive_samples": s.PositiveCount,
		"rules":            s.RuleCount,
		"vocabulary_size":  s.VocabularySize,
		"snapshot_id":      s.SnapshotID,
		"duration":         s.Duration.String(),
	}
	if len(s.Artifacts) > 0 {
		artifacts := make(map[string]any, len(s.Artifacts))
		for kind, entry := range s.Artifacts {
			artifacts[kind] = map[string]any{
				"file":        entry.File,
				"snapshot_id": entry.SnapshotID,
				"sha256":      entry.SHA256,
				"size":        entry.Size,
			}
		}
		m["artifacts"] = artifacts
	}
	return m
}

type Recommender struct {
	bundle *dataset.Bundle
	store  *artifact.Store
	opts   Options
	logger *zap.Logger

	snapshot atomic.Pointer[Snapshot]
	// trainMu serializes Train so two runs never interleave artifact writes.
	trainMu sync.Mutex
	group   singleflight.Group
}

// New creates a recommender over bundle. A nil store keeps models in memory only.
func New(bundle *dataset.Bundle, store *artifact.Store, opts Options, log *zap.Logger) *Recommender {
	if bundle == nil || bundle.Internships == nil {
		var resumes []*dataset.Resume
		if bundle != nil {
			resumes = bundle.Resumes
		}
		bundle = dataset.NewBundle(nil, resumes)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recommender{bundle: bundle, store: store, opts: opts, logger: log}
}

// Snapshot returns the currently served models or nil before training.
func (r *Recommender) Snapshot() *Snapshot {
	return r.snapshot.Load()
}

// Train fits whatever is missing, or everything when force is set, and
// publishes the result. On error the served snapshot is left untouched.
func (r *Recommender) Train(force bool) (*TrainSummary, error) {
	r.trainMu.Lock()
	defer r.trainMu.Unlock()

	started := time.Now()
	summary := &TrainSummary{}

	next := &Snapshot{}
	if current := r.snapshot.Load(); current != nil && !force {
		*next = *current
	}
	if !force {
		if err := r.loadPersisted(next); err != nil {
			return nil, err
		}
	}

	// A refitted rules model changes the rule score feature, so the ranker
	// is refitted with it.
	var fittedRules *rules.Model
	if force || next.Rules == nil {
		model, err := rules.Fit(r.bundle.Internships.RequiredSkillLists(), r.opts.Rules)
		if err != nil {
			return nil, fmt.Errorf("fit rules: %w", err)
		}
		fittedRules = model
		next.Rules, next.RulesMeta = model, artifact.Meta{}
		summary.RulesRetrained = true

		r.logger.Info("rules fitted",
			zap.Int("rules", model.RuleCount()),
			zap.Int("vocabulary", len(model.Vocabulary)),
			zap.Int("transactions", model.TransactionCount),
		)
	}

	var fittedRanker *forest.Forest
	if fittedRules != nil || next.Ranker == nil {
		samples := training.Synthesize(r.bundle.Resumes, r.scorer(next.Rules), r.bundle.Popularity, r.opts.Training)
		summary.SampleCount = len(samples)
		summary.PositiveCount = training.Positives(samples)
		if len(samples) == 0 {
			return nil, apperr.New(apperr.ErrTrainingDataEmpty, "resumes produced no training samples")
		}

		x, y := training.Split(samples)
		ranker, err := forest.Fit(x, y, r.opts.Forest)
		if err != nil {
			if errors.Is(err, forest.ErrEmptyTrainingSet) {
				return nil, apperr.New(apperr.ErrTrainingDataEmpty, err.Error())
			}
			return nil, fmt.Errorf("fit ranking model: %w", err)
		}
		fittedRanker = ranker
		next.Ranker, next.RankerMeta = ranker, artifact.Meta{}
		summary.RankerRetrained = true

		r.logger.Info("ranking model fitted",
			zap.Int("samples", summary.SampleCount),
			zap.Int("positive", summary.PositiveCount),
			zap.Int("trees", ranker.Len()),
		)
	}

	// Both models are fitted before anything is written, so a failed run
	// leaves the stored pair as it was.
	if fittedRules != nil {
		meta, err := r.persist(artifact.KindRules, "", func() (artifact.Meta, error) {
			return r.store.SaveRules(fittedRules)
		})
		if err != nil {
			return nil, err
		}
		next.RulesMeta = meta
	}
	if fittedRanker != nil {
		rulesID := next.RulesMeta.SnapshotID
		meta, err := r.persist(artifact.KindRanker, rulesID, func() (artifact.Meta, error) {
			return r.store.SaveRanker(fittedRanker, rulesID)
		})
		if err != nil {
			return nil, err
		}
		next.RankerMeta = meta
	}
	summary.Artifacts = r.manifest()

	next.ID = uuid.NewString()
	r.snapshot.Store(next)

	summary.RuleCount = next.Rules.RuleCount()
	summary.VocabularySize = len(next.Rules.Vocabulary)
	summary.SnapshotID = next.ID
	summary.Duration = time.Since(started)

	logger.WithSnapshot(r.logger, next.ID, r.storeDir()).Info("snapshot published",
		zap.Bool("rules_retrained", summary.RulesRetrained),
		zap.Bool("ranker_retrained", summary.RankerRetrained),
	)

	return summary, nil
}

// loadPersisted fills the missing halves of next from the store. Missing or
// corrupt artifacts are left for retraining.
func (r *Recommender) loadPersisted(next *Snapshot) error {
	if r.store == nil {
		return nil
	}

	if next.Rules == nil {
		model, meta, err := r.store.LoadRules()
		switch {
		case err == nil:
			next.Rules, next.RulesMeta = model, meta
			r.logger.Debug("rules loaded", zap.String(logger.FieldSnapshot, meta.SnapshotID))
		case errors.Is(err, apperr.ErrArtifactMissing):
			r.logger.Debug("rules artifact missing", zap.Error(err))
		case errors.Is(err, apperr.ErrArtifactCorrupt):
			r.logger.Warn("rules artifact is corrupt, retraining", zap.Error(err))
		default:
			return fmt.Errorf("load rules: %w", err)
		}
	}

	if next.Ranker == nil {
		ranker, meta, err := r.store.LoadRanker()
		switch {
		case err == nil:
			next.Ranker, next.RankerMeta = ranker, meta
			r.logger.Debug("ranking model loaded", zap.String(logger.FieldSnapshot, meta.SnapshotID))
		case errors.Is(err, apperr.ErrArtifactMissing):
			r.logger.Debug("ranking artifact missing", zap.Error(err))
		case errors.Is(err, apperr.ErrArtifactCorrupt):
			r.logger.Warn("ranking artifact is corrupt, retraining", zap.Error(err))
		default:
			return fmt.Errorf("load ranking model: %w", err)
		}
	}

	if next.Ranker != nil && (next.Rules == nil || next.RankerMeta.RulesID != next.RulesMeta.SnapshotID) {
		r.logger.Warn("ranking model was trained against other rules, retraining",
			zap.String("rules_id", next.RankerMeta.RulesID),
			zap.String(logger.FieldSnapshot, next.RulesMeta.SnapshotID),
		)
		next.Ranker, next.RankerMeta = nil, artifact.Meta{}
	}

	return nil
}

// manifest reports the stored artifacts after a run. A nil store has none.
func (r *Recommender) manifest() map[string]artifact.Entry {
	if r.store == nil {
		return nil
	}
	m, err := r.store.Manifest()
	if err != nil {
		r.logger.Warn("reading artifacts manifest", zap.Error(err))
		return nil
	}
	return m.Artifacts
}

func (r *Recommender) persist(kind, rulesID string, save func() (artifact.Meta, error)) (artifact.Meta, error) {
	if r.store == nil {
		return artifact.Meta{Kind: kind, SnapshotID: uuid.NewString(), RulesID: rulesID, CreatedAt: time.Now().UTC()}, nil
	}
	meta, err := save()
	if err != nil {
		return artifact.Meta{}, fmt.Errorf("persist %s: %w", kind, err)
	}
	return meta, nil
}

func (r *Recommender) storeDir() string {
	if r.store == nil {
		return ""
	}
	return r.store.Dir()
}

func (r *Recommender) scorer(model *rules.Model) training.ScoreFunc {
	return func(userSkills []string) []features.Candidate {
		return features.Score(model, r.bundle.Internships, userSkills)
	}
}

// ensureTrained returns a complete snapshot, training lazily on first use.
// Concurrent callers share one training run.
func (r *Recommender) ensureTrained() (*Snapshot, error) {
	if snap := r.snapshot.Load(); snap.complete() {
		return snap, nil
	}

	_, err, shared := r.group.Do(bootstrapKey, func() (any, error) {
		if snap := r.snapshot.Load(); snap.complete() {
			return nil, nil
		}
		r.logger.Info("models are not trained yet, bootstrapping")
		_, err := r.Train(false)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.logger.Debug("joined an in-flight bootstrap")
	}

	snap := r.snapshot.Load()
	if !snap.complete() {
		return nil, apperr.New(apperr.ErrArtifactMissing, "bootstrap finished without a snapshot")
	}
	return snap, nil
}

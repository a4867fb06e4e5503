// Package artifact persists trained models as versioned JSON envelopes next to
// a YAML manifest of checksums.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/spigell/internship-recommender/internal/apperr"
	"github.com/spigell/internship-recommender/internal/features"
	"github.com/spigell/internship-recommender/internal/forest"
	"github.com/spigell/internship-recommender/internal/rules"
)

// FormatVersion is bumped whenever a payload layout changes. Older artifacts
// are reported as corrupt so they get retrained.
const FormatVersion = 1

const (
	KindRules  = "rules"
	KindRanker = "ranker"

	RulesFile    = "rules.json"
	RankerFile   = "ranker.json"
	ManifestFile = "manifest.yaml"
	lockFile     = ".artifacts.lock"
)

// Envelope wraps every payload on disk. RulesID is set on ranker envelopes
// only and names the rules snapshot the ranker was trained against.
type Envelope struct {
	FormatVersion int             `json:"format_version"`
	Kind          string          `json:"kind"`
	SnapshotID    string          `json:"snapshot_id"`
	RulesID       string          `json:"rules_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Meta identifies one stored artifact.
type Meta struct {
	Kind       string    `json:"kind"`
	SnapshotID string    `json:"snapshot_id"`
	RulesID    string    `json:"rules_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store reads and writes artifacts in one directory. Writers take an exclusive
// file lock and readers a shared one, so separate processes may share a dir.
type Store struct {
	dir  string
	lock *flock.Flock
	now  func() time.Time
}

func NewStore(dir string) *Store {
	return &Store{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, lockFile)),
		now:  time.Now,
	}
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) SaveRules(model *rules.Model) (Meta, error) {
	if err := model.Validate(); err != nil {
		return Meta{}, fmt.Errorf("refusing to save rules model: %w", err)
	}
	return s.save(Meta{Kind: KindRules}, RulesFile, model)
}

func (s *Store) LoadRules() (*rules.Model, Meta, error) {
	var model rules.Model
	meta, err := s.load(KindRules, RulesFile, &model)
	if err != nil {
		return nil, Meta{}, err
	}
	if err := model.Validate(); err != nil {
		return nil, Meta{}, err
	}
	return &model, meta, nil
}

// SaveRanker stores f together with the snapshot id of the rules model its
// training samples were scored with.
func (s *Store) SaveRanker(f *forest.Forest, rulesID string) (Meta, error) {
	if err := f.Validate(); err != nil {
		return Meta{}, fmt.Errorf("refusing to save ranking model: %w", err)
	}
	if _, err := uuid.Parse(rulesID); err != nil {
		return Meta{}, apperr.Newf(apperr.ErrInvalidInput, "ranking model needs the rules snapshot id, got %q", rulesID)
	}
	return s.save(Meta{Kind: KindRanker, RulesID: rulesID}, RankerFile, f)
}

func (s *Store) LoadRanker() (*forest.Forest, Meta, error) {
	var f forest.Forest
	meta, err := s.load(KindRanker, RankerFile, &f)
	if err != nil {
		return nil, Meta{}, err
	}
	if err := f.Validate(); err != nil {
		return nil, Meta{}, err
	}
	if f.Features != features.Count {
		return nil, Meta{}, apperr.Newf(apperr.ErrArtifactCorrupt, "ranking model expects %d features, want %d", f.Features, features.Count)
	}
	if _, err := uuid.Parse(meta.RulesID); err != nil {
		return nil, Meta{}, apperr.Newf(apperr.ErrArtifactCorrupt, "ranking model has invalid rules id %q", meta.RulesID)
	}
	return &f, meta, nil
}

func (s *Store) save(meta Meta, file string, payload any) (Meta, error) {
	kind := meta.Kind
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Meta{}, fmt.Errorf("create artifacts dir: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return Meta{}, fmt.Errorf("lock artifacts dir: %w", err)
	}
	defer s.lock.Unlock()

	raw, err := json.Marshal(payload)
	if err != nil {
		return Meta{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}

	meta.SnapshotID = uuid.NewString()
	meta.CreatedAt = s.now().UTC()
	data, err := json.Marshal(Envelope{
		FormatVersion: FormatVersion,
		Kind:          kind,
		SnapshotID:    meta.SnapshotID,
		RulesID:       meta.RulesID,
		CreatedAt:     meta.CreatedAt,
		Payload:       raw,
	})
	if err != nil {
		return Meta{}, fmt.Errorf("encode %s envelope: %w", kind, err)
	}

	if err := writeAtomic(s.dir, file, data); err != nil {
		return Meta{}, err
	}

	manifest, err := s.readManifest()
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrArtifactMissing), errors.Is(err, apperr.ErrArtifactCorrupt):
		// Entries of an unreadable manifest are lost; those artifacts load as corrupt and get retrained.
		manifest = newManifest()
	default:
		return Meta{}, err
	}
	manifest.Artifacts[kind] = Entry{
		File:          file,
		FormatVersion: FormatVersion,
		SnapshotID:    meta.SnapshotID,
		RulesID:       meta.RulesID,
		SHA256:        checksum(data),
		Size:          int64(len(data)),
		CreatedAt:     meta.CreatedAt,
	}
	if err := s.writeManifest(manifest); err != nil {
		return Meta{}, err
	}

	return meta, nil
}

func (s *Store) load(kind, file string, into any) (Meta, error) {
	path := filepath.Join(s.dir, file)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Meta{}, apperr.Newf(apperr.ErrArtifactMissing, "%s artifact not found in %s", kind, s.dir)
		}
		return Meta{}, fmt.Errorf("stat %s artifact: %w", kind, err)
	}

	if err := s.lock.RLock(); err != nil {
		return Meta{}, fmt.Errorf("lock artifacts dir: %w", err)
	}
	defer s.lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Meta{}, apperr.Newf(apperr.ErrArtifactMissing, "%s artifact not found in %s", kind, s.dir)
		}
		return Meta{}, fmt.Errorf("read %s artifact: %w", kind, err)
	}

	manifest, err := s.readManifest()
	if err != nil {
		if errors.Is(err, apperr.ErrArtifactMissing) {
			return Meta{}, apperr.Newf(apperr.ErrArtifactCorrupt, "%s artifact has no manifest entry", kind)
		}
		return Meta{}, err
	}
	entry, ok := manifest.Artifacts[kind]
	if !ok {
		return Meta{}, apperr.Newf(apperr.ErrArtifactCorrupt, "%s artifact has no manifest entry", kind)
	}
	if sum := checksum(data); sum != entry.SHA256 {
		return Meta{}, apperr.Newf(apperr.ErrArtifactCorrupt, "%s artifact checksum mismatch", kind)
	}

	return decode(kind, data, into)
}

func decode(kind string, data []byte, into any) (Meta, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Meta{}, apperr.Newf(apperr.ErrArtifactCorrupt, "decode %s envelope: %v", kind, err)
	}
	if env.FormatVersion != FormatVersion {
		return Meta{}, apperr.Newf(apperr.ErrArtifactCorrupt, "%s artifact has format version %d, want %d", kind, env.FormatVersion, FormatVersion)
	}
	if env.Kind != kind {
		return Meta{}, apperr.Newf(apperr.ErrArtifactCorrupt, "artifact holds %q, want %q", env.Kind, kind)
	}
	if _, err := uuid.Parse(env.SnapshotID); err != nil {
		return Meta{}, apperr.Newf(apperr.ErrArtifactCorrupt, "%s artifact has invalid snapshot id %q", kind, env.SnapshotID)
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return Meta{}, apperr.Newf(apperr.ErrArtifactCorrupt, "%s artifact has no payload", kind)
	}
	if err := json.Unmarshal(env.Payload, into); err != nil {
		return Meta{}, apperr.Newf(apperr.ErrArtifactCorrupt, "decode %s payload: %v", kind, err)
	}
	return Meta{Kind: env.Kind, SnapshotID: env.SnapshotID, RulesID: env.RulesID, CreatedAt: env.CreatedAt}, nil
}

// writeAtomic writes data to a temp file in dir and renames it over name.
func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

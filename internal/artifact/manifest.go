package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spigell/internship-recommender/internal/apperr"
)

// Manifest lists the checksum of every stored artifact by kind.
type Manifest struct {
	FormatVersion int              `yaml:"format_version"`
	Artifacts     map[string]Entry `yaml:"artifacts"`
}

type Entry struct {
	File          string    `yaml:"file"`
	FormatVersion int       `yaml:"format_version"`
	SnapshotID    string    `yaml:"snapshot_id"`
	RulesID       string    `yaml:"rules_id,omitempty"`
	SHA256        string    `yaml:"sha256"`
	Size          int64     `yaml:"size"`
	CreatedAt     time.Time `yaml:"created_at"`
}

func newManifest() *Manifest {
	return &Manifest{FormatVersion: FormatVersion, Artifacts: make(map[string]Entry)}
}

// Manifest returns the current manifest under a shared lock.
func (s *Store) Manifest() (*Manifest, error) {
	if _, err := os.Stat(s.dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.Newf(apperr.ErrArtifactMissing, "artifacts dir %s does not exist", s.dir)
		}
		return nil, err
	}
	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock artifacts dir: %w", err)
	}
	defer s.lock.Unlock()

	return s.readManifest()
}

func (s *Store) readManifest() (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.New(apperr.ErrArtifactMissing, "manifest not found")
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, apperr.Newf(apperr.ErrArtifactCorrupt, "decode manifest: %v", err)
	}
	if m.Artifacts == nil {
		m.Artifacts = make(map[string]Entry)
	}
	return &m, nil
}

func (s *Store) writeManifest(m *Manifest) error {
	m.FormatVersion = FormatVersion
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return writeAtomic(s.dir, ManifestFile, data)
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Package artifact persists and loads the fitted state of one training run:
// three vocabularies, the scaler, and the model.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ghatsafe/ghatsafe/internal/security"
)

// Artifact names inside a store.
const (
	LocationVocab = "vocab_location.json"
	WeatherVocab  = "vocab_weather.json"
	RoadVocab     = "vocab_road.json"
	ScalerParams  = "scaler.json"
	Model         = "model.json"
)

// Names lists every artifact a complete bundle needs.
func Names() []string {
	return []string{LocationVocab, WeatherVocab, RoadVocab, ScalerParams, Model}
}

// ErrArtifactMissing is returned when a required artifact is absent.
var ErrArtifactMissing = errors.New("artifact missing")

// Store reads and writes named artifacts.
type Store interface {
	Load(name string) ([]byte, error)
	Save(name string, data []byte) error
}

// DirStore keeps artifacts as files in one directory.
type DirStore struct {
	Dir string
}

// NewDirStore returns a store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{Dir: dir}
}

func (s *DirStore) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	p := filepath.Join(s.Dir, name)
	if err := security.ValidatePathWithinDirectory(p, s.Dir); err != nil {
		return "", err
	}
	return p, nil
}

// Load reads name from the directory. A missing directory counts as a
// missing artifact.
func (s *DirStore) Load(name string) ([]byte, error) {
	if _, err := os.Stat(s.Dir); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, filepath.Join(s.Dir, name))
	}
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, p)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", p, err)
	}
	return data, nil
}

// Save writes name atomically by renaming a temporary file into place.
func (s *DirStore) Save(name string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	p, err := s.path(name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.Dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("install artifact %s: %w", name, err)
	}
	return nil
}

// MemStore is an in-memory Store for tests and tooling.
type MemStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{files: make(map[string][]byte)}
}

// Load returns a copy of the stored bytes.
func (s *MemStore) Load(name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, name)
	}
	return append([]byte(nil), data...), nil
}

// Save stores a copy of data.
func (s *MemStore) Save(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = append([]byte(nil), data...)
	return nil
}

// Delete removes name. Used to simulate a partial deployment.
func (s *MemStore) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
}

// List returns the stored names in sorted order.
func (s *MemStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.files))
	for name := range s.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

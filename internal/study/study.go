// Package study keeps named on-disk studies that collect saved analysis runs.
package study

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/microlens-cli/internal/utils"
)

// ManifestFile is the study metadata file name.
const ManifestFile = "study.json"

// ErrNotFound is returned when a study or run does not exist.
var ErrNotFound = errors.New("not found")

// Study is a named collection of analysis runs.
type Study struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Runs        map[string]*Run `json:"runs"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	rootDir string
}

// NewStudy creates a new in-memory study rooted at rootDir.
func NewStudy(name, description, rootDir string) *Study {
	now := time.Now()
	return &Study{
		Name:        name,
		Description: description,
		Runs:        make(map[string]*Run),
		CreatedAt:   now,
		UpdatedAt:   now,
		rootDir:     rootDir,
	}
}

// Create initializes a study directory under baseDir and writes its manifest.
// It fails if the study already exists.
func Create(baseDir, name, description string) (*Study, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	root := filepath.Join(baseDir, name)
	if _, err := os.Stat(filepath.Join(root, ManifestFile)); err == nil {
		return nil, fmt.Errorf("study %q already exists", name)
	}
	s := NewStudy(name, description, root)
	if err := s.Save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open loads the study called name from baseDir.
func Open(baseDir, name string) (*Study, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return LoadStudy(filepath.Join(baseDir, name))
}

// OpenOrCreate opens the study, creating it when it does not exist yet.
func OpenOrCreate(baseDir, name string) (*Study, error) {
	s, err := Open(baseDir, name)
	if errors.Is(err, ErrNotFound) {
		return Create(baseDir, name, "")
	}
	return s, err
}

// LoadStudy loads a study from its root directory.
func LoadStudy(root string) (*Study, error) {
	b, err := os.ReadFile(filepath.Join(root, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("study at %s: %w", root, ErrNotFound)
		}
		return nil, fmt.Errorf("read study: %w", err)
	}
	var s Study
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse study: %w", err)
	}
	if s.Runs == nil {
		s.Runs = make(map[string]*Run)
	}
	s.rootDir = root
	return &s, nil
}

// RootDir returns the study root directory.
func (s *Study) RootDir() string { return s.rootDir }

// Save writes the study manifest.
func (s *Study) Save() error {
	if s.rootDir == "" {
		return errors.New("study root not set")
	}
	if err := utils.EnsureDir(filepath.Join(s.rootDir, runsDir)); err != nil {
		return fmt.Errorf("ensure study dir: %w", err)
	}
	s.UpdatedAt = time.Now()
	b, err := utils.PrettyJSON(s)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(s.rootDir, ManifestFile), b)
}

// ListRuns returns the runs ordered oldest first.
func (s *Study) ListRuns() []*Run {
	out := make([]*Run, 0, len(s.Runs))
	for _, r := range s.Runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// List returns the names of all studies under baseDir, sorted.
// A missing baseDir yields an empty list.
func List(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read studies dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(baseDir, e.Name(), ManifestFile)); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ValidateName rejects empty names and names that would escape the studies dir.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("study name is required")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid study name %q", name)
	}
	return nil
}

package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"igarchive/pkg/config"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/models"
)

// RawSource supplies the HTML snapshot for each category
type RawSource interface {
	// Read returns the snapshot for category. ok is false when no snapshot
	// exists.
	Read(category models.Category) (html string, ok bool, err error)

	// Discard removes a consumed snapshot so it is not processed again
	Discard(category models.Category) error
}

// FileSource reads snapshots from well-known files in a directory
type FileSource struct {
	dir   string
	files map[models.Category]string
}

// NewFileSource creates a source over dir. files maps categories to file
// names relative to dir.
func NewFileSource(dir string, files map[models.Category]string) *FileSource {
	return &FileSource{dir: dir, files: files}
}

// FileSourceFromConfig builds the snapshot source described by the input
// section.
func FileSourceFromConfig(cfg config.InputConfig) *FileSource {
	return NewFileSource(cfg.Dir, map[models.Category]string{
		models.CategoryPost: cfg.PostsFile,
		models.CategoryReel: cfg.ReelsFile,
	})
}

// Dir returns the snapshot directory
func (s *FileSource) Dir() string {
	return s.dir
}

// Path returns the snapshot file for category, or "" when none is configured
func (s *FileSource) Path(category models.Category) string {
	name := s.files[category]
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}

func (s *FileSource) Read(category models.Category) (string, bool, error) {
	path := s.Path(category)
	if path == "" {
		return "", false, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Wrap(errs.ErrorTypeInput, err, fmt.Sprintf("read %s snapshot", category))
	}
	return string(data), true, nil
}

func (s *FileSource) Discard(category models.Category) error {
	path := s.Path(category)
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.ErrorTypeInput, err, fmt.Sprintf("remove %s snapshot", category))
	}
	return nil
}

// MemorySource holds snapshots in memory, e.g. HTML posted to the server
type MemorySource struct {
	mu        sync.Mutex
	pages     map[models.Category]string
	discarded []models.Category
}

// NewMemorySource creates a source over pages
func NewMemorySource(pages map[models.Category]string) *MemorySource {
	cp := make(map[models.Category]string, len(pages))
	for k, v := range pages {
		cp[k] = v
	}
	return &MemorySource{pages: cp}
}

func (s *MemorySource) Read(category models.Category) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	html, ok := s.pages[category]
	return html, ok, nil
}

func (s *MemorySource) Discard(category models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pages, category)
	s.discarded = append(s.discarded, category)
	return nil
}

// Discarded lists the categories discarded so far, in order
func (s *MemorySource) Discarded() []models.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Category, len(s.discarded))
	copy(out, s.discarded)
	return out
}

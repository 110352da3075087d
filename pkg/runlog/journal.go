// Package runlog keeps a small on-disk journal of the most recent ingestion
// run per account, so status survives process restarts.
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"igarchive/pkg/logger"
	"igarchive/pkg/models"
)

// FileName is the journal's default file name inside the data directory
const FileName = "run_journal.json"

const journalVersion = 1

// document is the on-disk layout
type document struct {
	Version   int                          `json:"version"`
	UpdatedAt time.Time                    `json:"updated_at"`
	Accounts  map[string]models.RunOutcome `json:"accounts"`
	LastRunID string                       `json:"last_run_id,omitempty"`
}

// Journal records run outcomes. It is safe for concurrent use.
type Journal struct {
	path   string
	logger logger.Logger

	mu  sync.RWMutex
	doc document
}

// Open loads the journal at path, starting empty when the file does not
// exist yet.
func Open(path string, log logger.Logger) (*Journal, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	j := &Journal{
		path:   path,
		logger: log.WithField("component", "runlog"),
		doc: document{
			Version:  journalVersion,
			Accounts: make(map[string]models.RunOutcome),
		},
	}

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open run journal: %w", err)
	}
	defer file.Close()

	var doc document
	if err := json.NewDecoder(file).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode run journal: %w", err)
	}
	if doc.Accounts == nil {
		doc.Accounts = make(map[string]models.RunOutcome)
	}
	j.doc = doc

	j.logger.DebugWithFields("Run journal loaded", map[string]interface{}{
		"path":     path,
		"accounts": len(doc.Accounts),
	})
	return j, nil
}

// Path returns the journal file location
func (j *Journal) Path() string {
	return j.path
}

// Record stores o as the latest outcome for its partition and persists the
// journal.
func (j *Journal) Record(o models.RunOutcome) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	key := o.Partition
	if key == "" {
		key = o.Account
	}
	j.doc.Accounts[key] = o
	j.doc.LastRunID = o.RunID
	return j.save()
}

// Last returns the latest outcome recorded for a partition
func (j *Journal) Last(partition string) (models.RunOutcome, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	o, ok := j.doc.Accounts[partition]
	return o, ok
}

// Latest returns the most recently recorded outcome across all partitions
func (j *Journal) Latest() (models.RunOutcome, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, o := range j.doc.Accounts {
		if o.RunID == j.doc.LastRunID {
			return o, true
		}
	}
	return models.RunOutcome{}, false
}

// All returns every recorded outcome ordered by partition
func (j *Journal) All() []models.RunOutcome {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]models.RunOutcome, 0, len(j.doc.Accounts))
	for _, o := range j.doc.Accounts {
		out = append(out, o)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Partition < out[b].Partition })
	return out
}

// save writes the journal atomically. Callers hold j.mu.
func (j *Journal) save() error {
	j.doc.UpdatedAt = time.Now()

	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	tempPath := j.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary journal file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(j.doc); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode run journal: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync journal file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close journal file: %w", err)
	}
	if err := os.Rename(tempPath, j.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace journal file: %w", err)
	}

	j.logger.DebugWithFields("Run journal saved", map[string]interface{}{
		"path":   j.path,
		"run_id": j.doc.LastRunID,
	})
	return nil
}

// DataDir returns the per-user data directory for igarchive
func DataDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "igarchive"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "igarchive"), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "igarchive"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "igarchive"), nil
	}
}

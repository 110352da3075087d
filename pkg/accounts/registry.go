// Package accounts maps logical account identifiers to isolated storage
// partitions.
package accounts

import (
	"os"
	"path/filepath"
	"sync"

	"igarchive/pkg/config"
	"igarchive/pkg/logger"
)

// DefaultID is used when the configuration does not name a default account.
const DefaultID = "default"

// Partition is the physical location of one account's data
type Partition struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	StorePath   string `json:"store_path"`
	MediaDir    string `json:"media_dir"`
}

// Registry resolves account identifiers to partitions. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	partitions []Partition
	byID       map[string]int
	defaultID  string
	log        logger.Logger

	mu       sync.Mutex
	prepared map[string]bool
}

// NewRegistry builds a registry from configuration. Relative store paths and
// media directories are resolved against cfg.BaseDir.
func NewRegistry(cfg config.AccountsConfig, log logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNopLogger()
	}

	entries := cfg.List
	if len(entries) == 0 {
		entries = []config.AccountConfig{{
			ID:          DefaultID,
			DisplayName: "Default",
			Store:       "instagram_data.db",
			MediaDir:    "instagram",
		}}
	}

	r := &Registry{
		byID:      make(map[string]int, len(entries)),
		defaultID: cfg.Default,
		log:       log.WithField("component", "accounts"),
		prepared:  make(map[string]bool),
	}
	if r.defaultID == "" {
		r.defaultID = DefaultID
	}

	for _, e := range entries {
		if _, dup := r.byID[e.ID]; dup {
			continue
		}
		name := e.DisplayName
		if name == "" {
			name = e.ID
		}
		r.byID[e.ID] = len(r.partitions)
		r.partitions = append(r.partitions, Partition{
			ID:          e.ID,
			DisplayName: name,
			StorePath:   under(cfg.BaseDir, e.Store),
			MediaDir:    under(cfg.BaseDir, e.MediaDir),
		})
	}

	return r
}

func under(base, p string) string {
	if p == "" || filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

// Resolve returns the partition for id. Unknown identifiers degrade to the
// default partition, or to the first configured one when no default exists.
// Resolve never fails; directory creation problems are logged and surface
// later as storage errors.
func (r *Registry) Resolve(id string) Partition {
	p, ok := r.lookup(id)
	if !ok {
		p = r.fallback()
		r.log.DebugWithFields("Unknown account, using fallback partition", map[string]interface{}{
			"account":   id,
			"partition": p.ID,
		})
	}
	r.prepare(p)
	return p
}

// IsKnown reports whether id is configured explicitly
func (r *Registry) IsKnown(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// List returns all partitions in configured order
func (r *Registry) List() []Partition {
	out := make([]Partition, len(r.partitions))
	copy(out, r.partitions)
	return out
}

// DefaultID returns the identifier unknown accounts resolve to
func (r *Registry) DefaultID() string {
	return r.fallback().ID
}

func (r *Registry) lookup(id string) (Partition, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Partition{}, false
	}
	return r.partitions[i], true
}

func (r *Registry) fallback() Partition {
	if p, ok := r.lookup(r.defaultID); ok {
		return p
	}
	return r.partitions[0]
}

func (r *Registry) prepare(p Partition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.prepared[p.ID] {
		return
	}

	dirs := []string{p.MediaDir}
	if dir := filepath.Dir(p.StorePath); dir != "." {
		dirs = append(dirs, dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			r.log.WithError(err).WarnWithFields("Failed to create partition directory", map[string]interface{}{
				"partition": p.ID,
				"dir":       dir,
			})
			return
		}
	}
	r.prepared[p.ID] = true
}

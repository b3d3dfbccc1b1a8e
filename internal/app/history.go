package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/docview/internal/config"
)

// maxHistory bounds the number of remembered documents.
const maxHistory = 200

// HistoryEntry is the last position in one document.
type HistoryEntry struct {
	Page    int       `yaml:"page"`
	Updated time.Time `yaml:"updated"`
}

// History remembers the last page viewed per document path.
type History struct {
	mu      sync.Mutex
	path    string
	entries map[string]HistoryEntry
}

type historyFile struct {
	Documents map[string]HistoryEntry `yaml:"documents"`
}

// DefaultHistoryPath returns history.yaml in the user config directory.
func DefaultHistoryPath() (string, error) {
	dir, err := config.UserDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.yaml"), nil
}

// LoadHistory reads the history file at path. A missing file yields an
// empty history.
func LoadHistory(path string) (*History, error) {
	h := &History{path: path, entries: make(map[string]HistoryEntry)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return h, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var f historyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	for k, v := range f.Documents {
		h.entries[k] = v
	}
	return h, nil
}

// Page returns the remembered page for doc.
func (h *History) Page(doc string) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entries[doc]
	return e.Page, ok
}

// Record remembers page for doc. The oldest entries are dropped past
// maxHistory.
func (h *History) Record(doc string, page int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[doc] = HistoryEntry{Page: page, Updated: time.Now()}
	for len(h.entries) > maxHistory {
		var oldest string
		var at time.Time
		for k, e := range h.entries {
			if oldest == "" || e.Updated.Before(at) {
				oldest, at = k, e.Updated
			}
		}
		delete(h.entries, oldest)
	}
}

// Len returns the number of remembered documents.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Save writes the history atomically.
func (h *History) Save() error {
	h.mu.Lock()
	data, err := yaml.Marshal(historyFile{Documents: h.entries})
	h.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(h.path), ".history-*.yaml")
	if err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write history: %w", err)
	}
	return os.Rename(tmp.Name(), h.path)
}

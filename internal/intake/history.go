package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/talent-screener/internal/cvfile"
)

// History is the list of files already screened, persisted as JSON.
type History struct {
	Items []*HistoryEntry
}

type HistoryEntry struct {
	Digest      string
	File        string
	CandidateID string
	Score       int
	Verdict     string
	ScreenedAt  time.Time
}

// LoadHistory reads the history file. A missing or empty file is an empty history.
func LoadHistory(path string) (*History, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &History{}, nil
		}
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &History{}, nil
	}

	var history History
	if err := json.NewDecoder(file).Decode(&history); err != nil {
		return nil, fmt.Errorf("decoding history %s: %w", path, err)
	}
	return &history, nil
}

func (h *History) Append(entries ...*HistoryEntry) {
	h.Items = append(h.Items, entries...)
}

func (h *History) Len() int {
	return len(h.Items)
}

// Find returns the entry recorded for digest.
func (h *History) Find(digest string) *HistoryEntry {
	for _, entry := range h.Items {
		if entry.Digest == digest {
			return entry
		}
	}
	return nil
}

func (h *History) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(h)
}

type historyFilter struct {
	toggle
	path string
}

// NewHistory creates a filter that removes files already recorded in the
// history file. An empty path disables it.
func NewHistory(path string) Filter {
	f := &historyFilter{path: path}
	if path == "" {
		f.Disable("history file is not configured")
	}
	return f
}

func (f *historyFilter) Name() string { return "history" }

func (f *historyFilter) Apply(_ context.Context, deps Deps, files []*cvfile.File) ([]*cvfile.File, []Rejection, error) {
	history, err := LoadHistory(f.path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading history: %w", err)
	}

	var digestErr error
	kept, dropped := partition(f.Name(), files, func(file *cvfile.File) string {
		digest, err := file.Digest()
		if err != nil {
			digestErr = err
			return ""
		}
		if entry := history.Find(digest); entry != nil {
			return fmt.Sprintf("already screened as %s (candidate %s)", entry.File, entry.CandidateID)
		}
		return ""
	})
	if digestErr != nil && deps.Logger != nil {
		// unreadable files are left for the worker to report
		deps.Logger.Warn("hashing file for history", zap.Error(digestErr))
	}

	return kept, dropped, nil
}

func (f *historyFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

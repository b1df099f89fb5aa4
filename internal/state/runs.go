// Package state persists unfinished wizard runs so they can be resumed.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gosimple/slug"

	"github.com/mark3labs/stepwise/internal/logger"
	"github.com/mark3labs/stepwise/internal/wizard"
)

// Run is a saved, unfinished run of one flow.
type Run struct {
	Flow     string          `json:"flow"`
	Instance string          `json:"instance"`
	SavedAt  time.Time       `json:"saved_at"`
	Snapshot wizard.Snapshot `json:"snapshot"`
}

// Path returns where the run of flowName is stored under dataDir.
func Path(dataDir, flowName string) string {
	name := slug.Make(flowName)
	if name == "" {
		name = "flow"
	}
	return filepath.Join(dataDir, "runs", name+".json")
}

// Load reads the saved run of flowName. ok is false if there is none or the
// file cannot be read.
func Load(dataDir, flowName string) (run *Run, ok bool) {
	path := Path(dataDir, flowName)

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to read run file: %v", err)
		}
		return nil, false
	}

	var r Run
	if err := json.Unmarshal(data, &r); err != nil {
		logger.Warn("Failed to parse run file %s: %v", path, err)
		return nil, false
	}
	return &r, true
}

// Save writes run, creating the runs directory if needed.
func Save(dataDir string, run *Run) error {
	path := Path(dataDir, run.Flow)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating runs directory: %w", err)
	}

	if run.SavedAt.IsZero() {
		run.SavedAt = time.Now()
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing run file: %w", err)
	}

	logger.Debug("Run of %s saved to %s", run.Flow, path)
	return nil
}

// Clear removes the saved run of flowName. A missing file is not an error.
func Clear(dataDir, flowName string) error {
	err := os.Remove(Path(dataDir, flowName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing run file: %w", err)
	}
	return nil
}

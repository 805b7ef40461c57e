// Package workspace manages the temporary directory shared by the compiled
// tests of one run.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	artifactName      = "artefact"
	extractedCodeName = "extracted-code"
)

// Workspace is a run-scoped temporary directory. Every compiled test reuses
// the same artifact and extracted-code paths, so tests sharing a workspace
// must not run concurrently.
type Workspace struct {
	dir string

	mu      sync.Mutex
	removed bool
}

// New creates a fresh workspace under the system temp directory. runID is
// embedded in the directory name to tell concurrent runs apart.
func New(runID string) (*Workspace, error) {
	pattern := "unitrun-*"
	if runID != "" {
		pattern = "unitrun-" + runID + "-*"
	}
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// ArtifactPath is where compiled tests are built.
func (w *Workspace) ArtifactPath() string {
	return filepath.Join(w.dir, artifactName)
}

// ExtractedCodePath receives the extraction tool's output.
func (w *Workspace) ExtractedCodePath() string {
	return filepath.Join(w.dir, extractedCodeName)
}

// ResetArtifact deletes the artifact left behind by a previous test.
func (w *Workspace) ResetArtifact() error {
	err := os.Remove(w.ArtifactPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale artifact: %w", err)
	}
	return nil
}

// Remove deletes the workspace and everything in it. Calls after the first
// are no-ops.
func (w *Workspace) Remove() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.removed {
		return nil
	}
	w.removed = true

	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("failed to remove workspace: %w", err)
	}
	return nil
}

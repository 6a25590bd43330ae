package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum-optimism/infra/browser-acceptor/results"
	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

// WriteFullResults writes the full results document to path.
func WriteFullResults(path string, doc results.FullResults) error {
	return writeJSON(path, doc)
}

// ReadFullResults loads a full results document written by WriteFullResults.
// Result consumers such as dashboards use it alongside ExtractFile.
func ReadFullResults(path string) (results.FullResults, error) {
	var doc results.FullResults
	if err := readJSON(path, &doc); err != nil {
		return results.FullResults{}, err
	}
	if doc.PathDelimiter == "" {
		doc.PathDelimiter = results.DefaultPathDelimiter
	}
	return doc, nil
}

// ExtractFile reads a full results document and partitions its leaves.
func ExtractFile(path string) (results.Summary, error) {
	doc, err := ReadFullResults(path)
	if err != nil {
		return results.Summary{}, err
	}
	return results.Extract(doc.Tests, doc.PathDelimiter)
}

// WriteRunState writes the run counters to path.
func WriteRunState(path string, state types.RunState) error {
	return writeJSON(path, state)
}

// ReadRunState loads run counters written by WriteRunState. It is the reading
// side of --test-state-json-path for tools that aggregate runs.
func ReadRunState(path string) (types.RunState, error) {
	var state types.RunState
	if err := readJSON(path, &state); err != nil {
		return types.RunState{}, err
	}
	return state, nil
}

// writeJSON writes through a temporary file in the target directory so a
// reader never observes a partially written document.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move results into %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

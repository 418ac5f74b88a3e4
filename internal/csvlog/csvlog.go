// Package csvlog implements the per-stage CSV event sinks (spec.md §6
// "Persisted files... Per-stage CSV event logs with documented column
// orders"). Each sink is append-only with a dedicated mutex (spec.md §5
// "CSV sinks: a dedicated mutex per sink; one row per call; append-only").
//
// No CSV library appears anywhere in the retrieved example pack, so this
// uses encoding/csv directly (the appropriate standard-library tool for a
// format this simple — there is nothing a third-party wrapper would add).
package csvlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Sink appends rows to one CSV file, writing a header exactly once.
type Sink struct {
	mu     sync.Mutex
	path   string
	header []string
	wrote  bool
}

// NewSink creates (or appends to) a CSV file at path with the given header.
func NewSink(path string, header []string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("csvlog: mkdir %s: %w", dir, err)
		}
	}
	_, err := os.Stat(path)
	exists := err == nil
	return &Sink{path: path, header: header, wrote: exists}, nil
}

// Append writes one row, emitting the header first if the file is new.
func (s *Sink) Append(row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("csvlog: open %s: %w", s.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if !s.wrote {
		if err := w.Write(s.header); err != nil {
			return fmt.Errorf("csvlog: write header: %w", err)
		}
		s.wrote = true
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("csvlog: write row: %w", err)
	}
	w.Flush()
	return w.Error()
}

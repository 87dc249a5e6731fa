// Package output writes sessionstarter results to files.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Rename records one function rename applied (or planned) in the engine.
type Rename struct {
	Addr   uint64 `json:"addr"`
	Old    string `json:"old"`
	New    string `json:"new"`
	Kind   string `json:"kind"`             // import-jump, wrapper, global-assign, signature
	Target string `json:"target,omitempty"` // imported symbol or callee
}

// Report summarizes one session start.
type Report struct {
	Analyzed   bool     `json:"analyzed"` // auto-analysis had to be triggered
	Signatures int      `json:"signatures"`
	Functions  int      `json:"functions"`
	DryRun     bool     `json:"dry_run,omitempty"`
	Renames    []Rename `json:"renames"`
}

// Counts returns the number of renames per kind.
func (r *Report) Counts() map[string]int {
	counts := make(map[string]int)
	for _, rn := range r.Renames {
		counts[rn.Kind]++
	}
	return counts
}

// WriteReportJSON writes the report to path.
func WriteReportJSON(path string, r *Report) error {
	return writeJSON(path, r)
}

// WriteDOT writes a rendered DOT graph to path.
func WriteDOT(path string, dot string) error {
	if err := mkdirFor(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(dot), 0644); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

func mkdirFor(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir %s: %w", filepath.Dir(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	if err := mkdirFor(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}

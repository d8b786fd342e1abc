package formatter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/seedspec/seedspec/internal/data"
)

// MultiFileFormatter writes generated source datasets to a directory, one
// JSON file per source plus a manifest listing them.
type MultiFileFormatter struct {
	OutputDir string
}

// NewMultiFileFormatter creates a new multi-file dataset formatter.
func NewMultiFileFormatter(outputDir string) *MultiFileFormatter {
	return &MultiFileFormatter{OutputDir: outputDir}
}

// Format writes every dataset and the manifest.
func (f *MultiFileFormatter) Format(datasets map[string]data.Dataset) error {
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	names := make([]string, 0, len(datasets))
	for name := range datasets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := f.writeDataset(name, datasets[name]); err != nil {
			return fmt.Errorf("failed to write dataset for %s: %w", name, err)
		}
	}

	return f.writeManifest(names, datasets)
}

// writeDataset writes a single source's rows to <source>.json.
func (f *MultiFileFormatter) writeDataset(name string, ds data.Dataset) error {
	raw, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(f.OutputDir, name+".json"), append(raw, '\n'), 0644)
}

// writeManifest writes _manifest.json: each source with its file and row
// count, so consumers can load datasets without globbing.
func (f *MultiFileFormatter) writeManifest(names []string, datasets map[string]data.Dataset) error {
	type entry struct {
		Source string `json:"source"`
		File   string `json:"file"`
		Rows   int    `json:"rows"`
	}

	entries := make([]entry, len(names))
	for i, name := range names {
		entries[i] = entry{Source: name, File: name + ".json", Rows: len(datasets[name].Records)}
	}

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(f.OutputDir, "_manifest.json"), append(raw, '\n'), 0644)
}

// Package seedspec generates test fixture data for data transformations and
// verifies their outputs against declared expectations.
//
// A declaration file (YAML) names the sources a transformation reads, the
// targets it writes, and scenarios of test cases. Each case gets its own
// copy of the factory-built source rows, with identifier columns rewritten
// to generated values that are unique across the whole run. After the
// transformation under test has run, the same generated values let seedspec
// attribute every output row back to the case that produced it and compare
// the rows case by case.
//
// # Quick Start
//
//	suite, err := seedspec.Load("spec.yml")
//	if err != nil { ... }
//	if err := suite.GenerateSources(); err != nil { ... }
//
//	// Feed suite.SourceData() to the transformation under test, collect
//	// its outputs per target, then:
//	report, err := suite.VerifyExpectations(actuals)
//	if err != nil { ... }
//	if !report.Passed() { ... }
//
// Load accepts a single YAML file or a directory of them; a directory is
// merged into one declaration. Generation is deterministic: compiling the
// same declaration twice produces identical generated values, so the
// generate and verify phases may run in separate processes.
package seedspec

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/seedspec/seedspec/internal/data"
	"github.com/seedspec/seedspec/internal/expect"
	"github.com/seedspec/seedspec/internal/ids"
	"github.com/seedspec/seedspec/internal/spec"
	"github.com/seedspec/seedspec/internal/stack"
)

// Dataset is an ordered set of records for one source or target.
type Dataset = data.Dataset

// Record is one row of a dataset.
type Record = data.Record

// Value is a single cell value.
type Value = data.Value

// Report aggregates the verification results of every case.
type Report = expect.Report

// CaseResult is the verification outcome of one case against one target.
type CaseResult = expect.CaseResult

// Suite is a compiled declaration: the parsed document plus the identifier
// registry and, after GenerateSources, the stacked source data.
type Suite struct {
	doc     *spec.Document
	reg     *ids.Registry
	sources map[string]*stack.SourceData
}

// Compile parses and validates a single declaration document.
func Compile(raw []byte) (*Suite, error) {
	doc, err := spec.Parse(raw)
	if err != nil {
		return nil, err
	}
	return newSuite(doc)
}

// Load reads a declaration from a YAML file, or from every .yml/.yaml file
// in a directory, merged in name order.
func Load(path string) (*Suite, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read declaration: %w", err)
	}

	if !info.IsDir() {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read declaration: %w", err)
		}
		return Compile(raw)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read declaration directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yml" || ext == ".yaml" {
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .yml or .yaml files in %s", path)
	}
	sort.Strings(files)

	merged := &spec.Document{}
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		d, err := spec.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("in %s: %w", file, err)
		}
		if d.Version != "" {
			merged.Version = d.Version
		}
		if d.Description != "" {
			merged.Description = d.Description
		}
		merged.Merge(d)
	}

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return newSuite(merged)
}

func newSuite(doc *spec.Document) (*Suite, error) {
	reg, err := ids.NewRegistry(doc.Identifiers)
	if err != nil {
		return nil, err
	}
	return &Suite{doc: doc, reg: reg}, nil
}

// Filter keeps only the scenarios and cases whose names match the given
// regular expressions. Empty patterns keep everything at that level. Filter
// must be called before GenerateSources.
func (s *Suite) Filter(scenarioPattern, casePattern string) error {
	if s.sources != nil {
		return fmt.Errorf("cannot filter after sources have been generated")
	}

	var scenarioMatch, caseMatch func(string) bool
	if scenarioPattern != "" {
		re, err := regexp.Compile(scenarioPattern)
		if err != nil {
			return fmt.Errorf("bad scenario pattern: %w", err)
		}
		scenarioMatch = re.MatchString
	}
	if casePattern != "" {
		re, err := regexp.Compile(casePattern)
		if err != nil {
			return fmt.Errorf("bad case pattern: %w", err)
		}
		caseMatch = re.MatchString
	}

	s.doc.FilterScenarios(scenarioMatch, caseMatch)
	return nil
}

// GenerateSources builds the stacked source datasets and freezes the
// identifier registry. It is idempotent.
func (s *Suite) GenerateSources() error {
	if s.sources != nil {
		return nil
	}
	sources, err := stack.New(s.doc, s.reg).Generate()
	if err != nil {
		return err
	}
	s.sources = sources
	return nil
}

// SourceData returns the generated dataset for every declared source,
// generating them first if needed.
func (s *Suite) SourceData() (map[string]Dataset, error) {
	if err := s.GenerateSources(); err != nil {
		return nil, err
	}
	out := make(map[string]Dataset, len(s.sources))
	for name, src := range s.sources {
		out[name] = src.Dataset()
	}
	return out, nil
}

// VerifyExpectations compares actual target data against every declared
// expectation. Sources are generated first if needed, since attribution
// depends on the generated identifier values.
func (s *Suite) VerifyExpectations(actuals map[string]Dataset) (*Report, error) {
	if err := s.GenerateSources(); err != nil {
		return nil, err
	}
	return expect.New(s.doc, s.reg).CompareAll(actuals)
}

// SourceNames returns the declared source names in declaration order.
func (s *Suite) SourceNames() []string {
	names := make([]string, len(s.doc.Sources))
	for i, src := range s.doc.Sources {
		names[i] = src.Name
	}
	return names
}

// TargetNames returns the declared target names in declaration order.
func (s *Suite) TargetNames() []string {
	names := make([]string, len(s.doc.Targets))
	for i, tgt := range s.doc.Targets {
		names[i] = tgt.Name
	}
	return names
}

// Document exposes the parsed declaration, for rendering documentation.
func (s *Suite) Document() *spec.Document {
	return s.doc
}

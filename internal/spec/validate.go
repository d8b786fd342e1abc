package spec

import "fmt"

// DuplicateError reports two declarations sharing one name.
type DuplicateError struct {
	Kind string
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s declared: %q", e.Kind, e.Name)
}

// ReferenceError reports a name used somewhere it was never declared.
type ReferenceError struct {
	Kind     string
	Name     string
	Referrer string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("unknown %s %q referenced in %s", e.Kind, e.Name, e.Referrer)
}

// CycleError reports a factory inheritance cycle.
type CycleError struct {
	Factory string
	Chain   []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("factory inheritance cycle at %q: %v", e.Factory, e.Chain)
}

// Validate checks every cross-reference in the document: identifier map
// entries, factory parents (including cycles), data block sources, and
// expectation targets. It fails on the first violation, naming the
// offending entity and its container.
func (d *Document) Validate() error {
	if err := d.checkDuplicates(); err != nil {
		return err
	}

	for _, src := range d.Sources {
		ref := fmt.Sprintf("source %q", src.Name)
		if err := d.checkIdentifierMap(src.IdentifierMap, ref); err != nil {
			return err
		}
	}
	for _, tgt := range d.Targets {
		ref := fmt.Sprintf("target %q", tgt.Name)
		if err := d.checkIdentifierMap(tgt.IdentifierMap, ref); err != nil {
			return err
		}
	}

	if err := d.checkFactories(); err != nil {
		return err
	}

	for _, sc := range d.Scenarios {
		if err := d.checkScenario(sc); err != nil {
			return err
		}
	}

	return nil
}

func (d *Document) checkDuplicates() error {
	seen := func(kind string) func(string) error {
		names := map[string]bool{}
		return func(name string) error {
			if names[name] {
				return &DuplicateError{Kind: kind, Name: name}
			}
			names[name] = true
			return nil
		}
	}

	checkIdentifier := seen("identifier")
	for _, id := range d.Identifiers {
		if err := checkIdentifier(id.Name); err != nil {
			return err
		}
	}
	checkSource := seen("source")
	for _, src := range d.Sources {
		if err := checkSource(src.Name); err != nil {
			return err
		}
	}
	checkTarget := seen("target")
	for _, tgt := range d.Targets {
		if err := checkTarget(tgt.Name); err != nil {
			return err
		}
	}
	checkFactory := seen("factory")
	for _, f := range d.Factories {
		if err := checkFactory(f.Name); err != nil {
			return err
		}
	}
	checkScenario := seen("scenario")
	for _, sc := range d.Scenarios {
		if err := checkScenario(sc.Name); err != nil {
			return err
		}
		checkCase := seen(fmt.Sprintf("case in scenario %q", sc.Name))
		for _, c := range sc.Cases {
			if err := checkCase(c.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Document) checkIdentifierMap(entries []IdentifierMapEntry, referrer string) error {
	for _, entry := range entries {
		id, ok := d.IdentifierByName(entry.Identifier.Name)
		if !ok {
			return &ReferenceError{Kind: "identifier", Name: entry.Identifier.Name, Referrer: referrer}
		}
		if !id.HasAttribute(entry.Identifier.Attribute) {
			return &ReferenceError{
				Kind:     "identifier attribute",
				Name:     entry.Identifier.Name + "." + entry.Identifier.Attribute,
				Referrer: referrer,
			}
		}
	}
	return nil
}

func (d *Document) checkFactories() error {
	for _, f := range d.Factories {
		ref := fmt.Sprintf("factory %q", f.Name)
		for _, parent := range f.Parents {
			if _, ok := d.FactoryByName(parent); !ok {
				return &ReferenceError{Kind: "parent factory", Name: parent, Referrer: ref}
			}
		}
		if err := d.checkDataBlocks(f.Data, ref); err != nil {
			return err
		}
	}

	// Cycle detection over the inheritance DAG: revisiting a factory on the
	// current traversal path is a structural error.
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[string]int{}

	var visit func(name string, chain []string) error
	visit = func(name string, chain []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return &CycleError{Factory: name, Chain: append(chain, name)}
		}
		state[name] = visiting
		f, _ := d.FactoryByName(name)
		for _, parent := range f.Parents {
			if err := visit(parent, append(chain, name)); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	for _, f := range d.Factories {
		if err := visit(f.Name, nil); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) checkDataBlocks(blocks []DataBlock, referrer string) error {
	for _, block := range blocks {
		if _, ok := d.SourceByName(block.Source); !ok {
			return &ReferenceError{Kind: "source", Name: block.Source, Referrer: referrer}
		}
		if _, err := ParseTable(block.Table); err != nil {
			return fmt.Errorf("bad table for source %q in %s: %w", block.Source, referrer, err)
		}
	}
	return nil
}

func (d *Document) checkScenario(sc Scenario) error {
	ref := fmt.Sprintf("scenario %q", sc.Name)
	if sc.Factory != nil {
		for _, parent := range sc.Factory.Parents {
			if _, ok := d.FactoryByName(parent); !ok {
				return &ReferenceError{Kind: "parent factory", Name: parent, Referrer: ref}
			}
		}
		if err := d.checkDataBlocks(sc.Factory.Data, ref); err != nil {
			return err
		}
	}

	for _, c := range sc.Cases {
		caseRef := fmt.Sprintf("case %q in %s", c.Name, ref)
		if c.Factory != nil {
			if err := d.checkDataBlocks(c.Factory.Data, caseRef); err != nil {
				return err
			}
		}
		for _, exp := range c.Expected.Data {
			if _, ok := d.TargetByName(exp.Target); !ok {
				return &ReferenceError{Kind: "target", Name: exp.Target, Referrer: caseRef}
			}
			if exp.Table != "" {
				if _, err := ParseTable(exp.Table); err != nil {
					return fmt.Errorf("bad expected table for target %q in %s: %w", exp.Target, caseRef, err)
				}
			}
		}
	}
	return nil
}

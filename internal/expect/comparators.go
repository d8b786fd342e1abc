package expect

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/seedspec/seedspec/internal/data"
	"github.com/seedspec/seedspec/internal/spec"
)

// Comparator decides whether an actual value satisfies an expected value.
type Comparator interface {
	Compare(expected, actual data.Value) bool
}

// comparatorBuilders maps "compare via" names to constructors. New kinds are
// added here, not as conditionals inside the engine.
var comparatorBuilders = map[string]func(spec.CompareRule) (Comparator, error){
	"exact":   func(spec.CompareRule) (Comparator, error) { return exactComparator{}, nil },
	"numeric": newNumericComparator,
	"regex":   func(spec.CompareRule) (Comparator, error) { return regexComparator{}, nil },
	"any":     func(spec.CompareRule) (Comparator, error) { return anyComparator{}, nil },
}

// comparatorFor builds the comparator a rule names. An unknown name is a
// configuration error.
func comparatorFor(rule spec.CompareRule) (Comparator, error) {
	build, ok := comparatorBuilders[rule.Using]
	if !ok {
		return nil, fmt.Errorf("unknown comparator %q for column %q", rule.Using, rule.Column)
	}
	return build(rule)
}

// exactComparator is the default: exact equality of kind and payload.
type exactComparator struct{}

func (exactComparator) Compare(expected, actual data.Value) bool {
	return expected.Equal(actual)
}

// numericComparator parses both sides as floats and compares within a
// tolerance. Nulls only match nulls; booleans never match.
type numericComparator struct {
	tolerance float64
}

func newNumericComparator(rule spec.CompareRule) (Comparator, error) {
	tol := rule.Tolerance
	if tol < 0 {
		return nil, fmt.Errorf("negative tolerance %v for column %q", tol, rule.Column)
	}
	if tol == 0 {
		tol = 1e-9
	}
	return numericComparator{tolerance: tol}, nil
}

func (c numericComparator) Compare(expected, actual data.Value) bool {
	if expected.IsNull() || actual.IsNull() {
		return expected.IsNull() && actual.IsNull()
	}
	if expected.Kind() != data.KindString || actual.Kind() != data.KindString {
		return false
	}
	e, err1 := strconv.ParseFloat(expected.Text(), 64)
	a, err2 := strconv.ParseFloat(actual.Text(), 64)
	if err1 != nil || err2 != nil {
		return false
	}
	return math.Abs(e-a) <= c.tolerance
}

// regexComparator treats the expected value as a pattern the actual string
// must contain a match for.
type regexComparator struct{}

func (regexComparator) Compare(expected, actual data.Value) bool {
	if expected.IsNull() || actual.IsNull() {
		return expected.IsNull() && actual.IsNull()
	}
	if expected.Kind() != data.KindString || actual.Kind() != data.KindString {
		return false
	}
	re, err := regexp.Compile(expected.Text())
	if err != nil {
		return false
	}
	return re.MatchString(actual.Text())
}

// anyComparator accepts everything; used for columns whose value is
// nondeterministic but whose presence matters.
type anyComparator struct{}

func (anyComparator) Compare(data.Value, data.Value) bool { return true }

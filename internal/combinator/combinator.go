// Package combinator enumerates every combination of values drawn from an
// ordered list of variable ranges.
package combinator

import (
	"fmt"
	"iter"
	"strconv"
)

// Value is a single setting of a variable. Enumerated values are opaque
// strings taken verbatim from the model file; stepped values are integers.
type Value struct {
	text  string
	num   int
	isInt bool
}

// Enumerated returns a Value holding s unchanged.
func Enumerated(s string) Value {
	return Value{text: s}
}

// Stepped returns an integer Value.
func Stepped(n int) Value {
	return Value{text: strconv.Itoa(n), num: n, isInt: true}
}

// String returns the textual form written to run documents and tables.
func (v Value) String() string {
	return v.text
}

// Int reports the integer held by a stepped value.
func (v Value) Int() (int, bool) {
	return v.num, v.isInt
}

// VariableRange is a named, ordered list of candidate values.
type VariableRange struct {
	Name   string
	Values []Value
}

// Varying reports whether the range takes part in combination. Ranges with
// a single value are fixed settings and never expanded.
func (r VariableRange) Varying() bool {
	return len(r.Values) >= 2
}

// Pair binds one variable to one of its values.
type Pair struct {
	Variable string
	Value    Value
}

// Combination holds one pair per participating range, in range order.
type Combination []Pair

// Names returns the variable names of c in order.
func (c Combination) Names() []string {
	names := make([]string, len(c))
	for i, p := range c {
		names[i] = p.Variable
	}
	return names
}

// Values returns the textual values of c in order.
func (c Combination) Values() []string {
	vals := make([]string, len(c))
	for i, p := range c {
		vals[i] = p.Value.String()
	}
	return vals
}

// Count returns the number of combinations Expand yields for ranges.
func Count(ranges []VariableRange) int {
	n := 1
	for _, r := range ranges {
		n *= len(r.Values)
	}
	return n
}

// Expand returns the Cartesian product of ranges as a lazy sequence. The
// first range varies slowest and the last fastest, matching nested loops
// written in range order. An empty list yields a single empty Combination.
// The sequence may be ranged over any number of times; each yielded
// Combination is a fresh slice the caller may keep.
func Expand(ranges []VariableRange) iter.Seq[Combination] {
	return func(yield func(Combination) bool) {
		for _, r := range ranges {
			if len(r.Values) == 0 {
				return
			}
		}

		idx := make([]int, len(ranges))
		for {
			combo := make(Combination, len(ranges))
			for i, r := range ranges {
				combo[i] = Pair{Variable: r.Name, Value: r.Values[idx[i]]}
			}
			if !yield(combo) {
				return
			}

			// Advance the odometer from the rightmost position.
			pos := len(ranges) - 1
			for ; pos >= 0; pos-- {
				idx[pos]++
				if idx[pos] < len(ranges[pos].Values) {
					break
				}
				idx[pos] = 0
			}
			if pos < 0 {
				return
			}
		}
	}
}

// SteppedValues returns the inclusive arithmetic sequence first,
// first+step, ... that does not pass last in the direction of step.
func SteppedValues(first, last, step int) ([]Value, error) {
	if step == 0 {
		return nil, fmt.Errorf("step must be non-zero")
	}

	var vals []Value
	for v := first; (step > 0 && v <= last) || (step < 0 && v >= last); v += step {
		vals = append(vals, Stepped(v))
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("range %d..%d with step %d has no values", first, last, step)
	}
	return vals, nil
}

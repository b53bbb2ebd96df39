// Package expand turns one BehaviorSpace experiment into the ordered list
// of concrete runs it describes.
//
// Each run is built fresh from an immutable template (the experiment with
// its varying value sets removed) plus one value combination, so runs never
// share mutable state. Run numbers start at 1 for every experiment and
// increase without gaps: combinations form the outer loop, repetition
// clones the inner one.
package expand

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nvandessel/split-nlogo/internal/combinator"
	"github.com/nvandessel/split-nlogo/internal/naming"
	"github.com/nvandessel/split-nlogo/internal/nlogo"
	"github.com/nvandessel/split-nlogo/internal/repetition"
	"github.com/nvandessel/split-nlogo/internal/runtable"
)

// Element and attribute names of the BehaviorSpace format.
const (
	enumeratedSet = "enumeratedValueSet"
	steppedSet    = "steppedValueSet"
	valueElement  = "value"

	attrRepetitions = "repetitions"
	attrVariable    = "variable"
	attrValue       = "value"
	attrFirst       = "first"
	attrLast        = "last"
	attrStep        = "step"
)

// RunInstance is one concrete run of an experiment.
type RunInstance struct {
	Experiment  string
	Number      int
	Combination combinator.Combination
	Repetitions int

	// Width is the zero-padding width for Number in file names.
	Width int

	// Document is the <experiment> element to write for this run.
	Document nlogo.Node
}

// ProcessedExperiment summarizes an expanded experiment.
type ProcessedExperiment struct {
	Name      string
	TotalRuns int
}

// RunSink receives runs in run-number order.
type RunSink interface {
	Emit(run RunInstance) error
}

// SinkFunc adapts a function to RunSink.
type SinkFunc func(run RunInstance) error

// Emit calls f(run).
func (f SinkFunc) Emit(run RunInstance) error {
	return f(run)
}

// Plan describes how an experiment will be expanded, before any run is
// produced.
type Plan struct {
	Name string

	// Template is the experiment element with varying value sets removed
	// and repetitions set to the per-run count.
	Template nlogo.Node

	// Varying are the ranges that take part in combination, in document
	// order.
	Varying []combinator.VariableRange

	// Fixed counts the value sets left untouched in the template.
	Fixed int

	Repetitions  repetition.Plan
	Combinations int
	Width        int
	TotalRuns    int
}

// Variables returns the names of the varying ranges.
func (p *Plan) Variables() []string {
	names := make([]string, len(p.Varying))
	for i, r := range p.Varying {
		names[i] = r.Name
	}
	return names
}

// Result is the outcome of expanding one experiment.
type Result struct {
	Processed ProcessedExperiment
	Table     *runtable.Table
	Plan      *Plan
}

// Expander expands experiments.
type Expander struct {
	repetitionsPerRun int
	logger            *slog.Logger
}

// New returns an Expander that splits repetitions into runs of
// repetitionsPerRun each (<= 0 disables splitting). A nil logger discards
// output.
func New(repetitionsPerRun int, logger *slog.Logger) *Expander {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Expander{repetitionsPerRun: repetitionsPerRun, logger: logger}
}

// Plan partitions the experiment's value sets, splits its repetitions and
// computes the resulting run count without producing any run.
func (e *Expander) Plan(exp nlogo.Experiment) (*Plan, error) {
	rawReps, _ := exp.Node.Attr(attrRepetitions)
	original, err := parseInt(exp.Name, exp.Node.Name, attrRepetitions, rawReps)
	if err != nil {
		return nil, err
	}
	if original < 0 {
		return nil, &ParseError{
			Experiment: exp.Name, Element: exp.Node.Name, Attr: attrRepetitions,
			Value: rawReps, Err: errors.New("must not be negative"),
		}
	}

	varying, removed, fixed, err := partition(exp)
	if err != nil {
		return nil, err
	}

	reps := repetition.Split(original, e.repetitionsPerRun)
	if !reps.Exact() {
		e.logger.Warn("repetitions per run does not divide the experiment's repetitions",
			"experiment", exp.Name,
			"original", reps.Original,
			"effective", reps.Effective(),
			"per_run", reps.InExperiment,
			"runs_per_combination", reps.OfExperiment)
	}

	combos := combinator.Count(varying)
	plan := &Plan{
		Name: exp.Name,
		Template: exp.Node.
			Without(removed).
			WithAttr(attrRepetitions, strconv.Itoa(reps.InExperiment)),
		Varying:      varying,
		Fixed:        fixed,
		Repetitions:  reps,
		Combinations: combos,
		Width:        naming.Width(combos),
		TotalRuns:    combos * reps.OfExperiment,
	}

	e.logger.Debug("planned experiment",
		"experiment", exp.Name,
		"varying", plan.Variables(),
		"fixed", fixed,
		"combinations", combos,
		"reps_in_experiment", reps.InExperiment,
		"reps_of_experiment", reps.OfExperiment)

	return plan, nil
}

// Expand produces every run of exp, in run-number order, handing each to
// sink. It stops at the first sink error; runs already emitted are not
// undone.
func (e *Expander) Expand(exp nlogo.Experiment, sink RunSink) (*Result, error) {
	plan, err := e.Plan(exp)
	if err != nil {
		return nil, err
	}

	table := runtable.New(plan.Variables())
	run := 0
	for combo := range combinator.Expand(plan.Varying) {
		doc := plan.Template.WithAppended(valueSetNodes(combo)...)
		for clone := 0; clone < plan.Repetitions.OfExperiment; clone++ {
			run++
			if err := table.Append(run, combo.Values()); err != nil {
				return nil, err
			}
			inst := RunInstance{
				Experiment:  exp.Name,
				Number:      run,
				Combination: combo,
				Repetitions: plan.Repetitions.InExperiment,
				Width:       plan.Width,
				Document:    doc,
			}
			if err := sink.Emit(inst); err != nil {
				return nil, fmt.Errorf("emitting run %d of %q: %w", run, exp.Name, err)
			}
		}
	}

	e.logger.Debug("expanded experiment", "experiment", exp.Name, "runs", run)

	return &Result{
		Processed: ProcessedExperiment{Name: exp.Name, TotalRuns: run},
		Table:     table,
		Plan:      plan,
	}, nil
}

// partition splits the experiment's direct value-set children into varying
// ranges (returned in document order, with their child indexes) and fixed
// ones (left in place and only counted).
func partition(exp nlogo.Experiment) ([]combinator.VariableRange, map[int]bool, int, error) {
	var (
		varying []combinator.VariableRange
		removed = make(map[int]bool)
		fixed   int
	)

	for i, child := range exp.Node.Children {
		if child.Kind != nlogo.ElementNode {
			continue
		}

		var r combinator.VariableRange
		switch child.Name {
		case enumeratedSet:
			r = enumeratedRange(child)
		case steppedSet:
			var err error
			r, err = steppedRange(exp.Name, child)
			if err != nil {
				return nil, nil, 0, err
			}
		default:
			continue
		}

		if r.Varying() {
			varying = append(varying, r)
			removed[i] = true
		} else {
			fixed++
		}
	}
	return varying, removed, fixed, nil
}

func enumeratedRange(n nlogo.Node) combinator.VariableRange {
	name, _ := n.Attr(attrVariable)
	r := combinator.VariableRange{Name: name}
	for _, v := range n.ChildElements(valueElement) {
		val, _ := v.Attr(attrValue)
		r.Values = append(r.Values, combinator.Enumerated(val))
	}
	return r
}

func steppedRange(experiment string, n nlogo.Node) (combinator.VariableRange, error) {
	name, _ := n.Attr(attrVariable)

	var bounds [3]int
	for i, attr := range []string{attrFirst, attrLast, attrStep} {
		raw, _ := n.Attr(attr)
		v, err := parseInt(experiment, n.Name, attr, raw)
		if err != nil {
			return combinator.VariableRange{}, err
		}
		bounds[i] = v
	}

	vals, err := combinator.SteppedValues(bounds[0], bounds[1], bounds[2])
	if err != nil {
		raw, _ := n.Attr(attrStep)
		return combinator.VariableRange{}, &ParseError{
			Experiment: experiment, Element: n.Name, Attr: attrStep, Value: raw, Err: err,
		}
	}
	return combinator.VariableRange{Name: name, Values: vals}, nil
}

func parseInt(experiment, element, attr, raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ParseError{Experiment: experiment, Element: element, Attr: attr, Value: raw, Err: err}
	}
	return v, nil
}

// valueSetNodes renders a combination as single-valued
// <enumeratedValueSet> elements.
func valueSetNodes(c combinator.Combination) []nlogo.Node {
	nodes := make([]nlogo.Node, len(c))
	for i, p := range c {
		nodes[i] = nlogo.Element(enumeratedSet,
			[]nlogo.Attr{{Name: attrVariable, Value: p.Variable}},
			nlogo.Element(valueElement, []nlogo.Attr{{Name: attrValue, Value: p.Value.String()}}),
		)
	}
	return nodes
}

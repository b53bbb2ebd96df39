// Package repetition decides how an experiment's repetitions are spread
// over generated runs.
package repetition

// Plan is the outcome of splitting an experiment's repetitions.
type Plan struct {
	// Original is the repetition count declared on the source experiment.
	Original int

	// InExperiment is the repetition count written into each generated run.
	InExperiment int

	// OfExperiment is how many runs are generated per value combination.
	OfExperiment int
}

// Split divides original repetitions into runs of requestedPerRun
// repetitions each. A request <= 0, or one larger than original, keeps all
// repetitions in a single run.
func Split(original, requestedPerRun int) Plan {
	if requestedPerRun <= 0 || original < requestedPerRun {
		return Plan{Original: original, InExperiment: original, OfExperiment: 1}
	}
	return Plan{
		Original:     original,
		InExperiment: requestedPerRun,
		OfExperiment: original / requestedPerRun,
	}
}

// Effective returns the total number of repetitions the plan produces.
func (p Plan) Effective() int {
	return p.InExperiment * p.OfExperiment
}

// Exact reports whether the plan keeps every original repetition.
func (p Plan) Exact() bool {
	return p.Effective() == p.Original
}

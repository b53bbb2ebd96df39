package expand

import "fmt"

// ParseError reports an experiment attribute that could not be read as an
// integer. It is fatal for the experiment.
type ParseError struct {
	Experiment string
	Element    string
	Attr       string
	Value      string
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("experiment %q: <%s %s=%q>: %v", e.Experiment, e.Element, e.Attr, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

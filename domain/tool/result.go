package tool

import "time"

// Result contains the output of a tool execution.
type Result struct {
	// Output is the textual result handed back to the model.
	Output string `json:"output"`

	// Duration is how long the execution took.
	Duration time.Duration `json:"duration"`
}

// NewResult creates a successful result with the given output.
func NewResult(output string) Result {
	return Result{Output: output}
}

// NewResultWithDuration creates a result with timing information.
func NewResultWithDuration(output string, duration time.Duration) Result {
	return Result{
		Output:   output,
		Duration: duration,
	}
}

// Observation is the text produced by a tool invocation, fed back to the
// model on the next reasoning step. Invocation failures are observations too.
type Observation struct {
	// Source is the name of the tool that produced the observation.
	Source string `json:"source"`

	// Text is the observation content.
	Text string `json:"text"`

	// Failed is set when the text describes a tool error.
	Failed bool `json:"failed,omitempty"`

	// Duration is how long the invocation took.
	Duration time.Duration `json:"duration"`
}

// NewObservation creates an observation from a successful result.
func NewObservation(source string, result Result) Observation {
	return Observation{
		Source:   source,
		Text:     result.Output,
		Duration: result.Duration,
	}
}

// FailedObservation renders a tool error as observation text.
func FailedObservation(source string, err error) Observation {
	return Observation{
		Source: source,
		Text:   err.Error(),
		Failed: true,
	}
}

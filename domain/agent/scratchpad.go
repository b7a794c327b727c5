package agent

import (
	"strings"

	"github.com/felixgeelhaar/sysagent/domain/tool"
)

// ScratchpadEntry pairs a tool-calling step with the observation it produced.
type ScratchpadEntry struct {
	Step        ReasoningStep    `json:"step"`
	Observation tool.Observation `json:"observation"`
}

// Scratchpad is the working memory of a single task. It is append-only
// and owned by one loop invocation.
type Scratchpad struct {
	entries []ScratchpadEntry
}

// Append records a step and its observation.
func (s *Scratchpad) Append(step ReasoningStep, obs tool.Observation) {
	s.entries = append(s.entries, ScratchpadEntry{Step: step, Observation: obs})
}

// Entries returns a copy of the recorded entries.
func (s *Scratchpad) Entries() []ScratchpadEntry {
	out := make([]ScratchpadEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *Scratchpad) Len() int {
	return len(s.entries)
}

// Reset discards all entries.
func (s *Scratchpad) Reset() {
	s.entries = nil
}

// Format renders the scratchpad as the continuation of a prompt that ends
// with "Thought:". Each entry replays the model's own text followed by the
// observation and a fresh thought prefix.
func (s *Scratchpad) Format() string {
	var b strings.Builder
	for _, e := range s.entries {
		b.WriteString(e.Step.Log)
		b.WriteString("\nObservation: ")
		b.WriteString(e.Observation.Text)
		b.WriteString("\nThought: ")
	}
	return b.String()
}

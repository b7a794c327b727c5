package agent

// DecisionType identifies what a reasoning step asks the loop to do.
type DecisionType string

const (
	DecisionToolCall    DecisionType = "tool_call"    // invoke a tool
	DecisionFinalAnswer DecisionType = "final_answer" // answer the operator
)

// ToolCall names a tool and the raw text to hand it.
type ToolCall struct {
	Tool  string `json:"tool"`
	Input string `json:"input"`
}

// FinalAnswer is the text returned to the operator.
type FinalAnswer struct {
	Text string `json:"text"`
}

// ReasoningStep is one parsed model response. Exactly one of ToolCall and
// Final is set, matching Decision.
type ReasoningStep struct {
	Thought  string       `json:"thought"`
	Decision DecisionType `json:"decision"`
	ToolCall *ToolCall    `json:"tool_call,omitempty"`
	Final    *FinalAnswer `json:"final,omitempty"`

	// Log is the raw model text the step was parsed from.
	Log string `json:"log"`
}

// NewToolCallStep creates a step that invokes a tool.
func NewToolCallStep(thought, toolName, input, log string) ReasoningStep {
	return ReasoningStep{
		Thought:  thought,
		Decision: DecisionToolCall,
		ToolCall: &ToolCall{Tool: toolName, Input: input},
		Log:      log,
	}
}

// NewFinalAnswerStep creates a step that ends the task.
func NewFinalAnswerStep(thought, answer, log string) ReasoningStep {
	return ReasoningStep{
		Thought:  thought,
		Decision: DecisionFinalAnswer,
		Final:    &FinalAnswer{Text: answer},
		Log:      log,
	}
}

// IsFinal returns true if the step ends the task.
func (s ReasoningStep) IsFinal() bool {
	return s.Decision == DecisionFinalAnswer && s.Final != nil
}

package statemachine

import (
	"github.com/felixgeelhaar/statekit"
)

// In statekit, actions receive a pointer to the context. Since our context
// is *Context, actions receive **Context.

// countIteration records another model completion after an observation.
func countIteration(ctx **Context, _ statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	(*ctx).Iterations++
}

// countParseFailure records a rejected completion and the re-prompt it triggers.
func countParseFailure(ctx **Context, _ statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	(*ctx).ParseFailures++
	(*ctx).Iterations++
}

// resetParseFailures clears the consecutive failure count after a parsed step.
func resetParseFailures(ctx **Context, _ statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	(*ctx).ParseFailures = 0
}

// recordFailure stores the failure reason carried by the event payload.
func recordFailure(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	if reason, ok := event.Payload.(string); ok {
		(*ctx).FailReason = reason
	}
}

package statemachine

import (
	"github.com/felixgeelhaar/statekit"
)

// Guards receive the context by value. Since our context is *Context, the
// guard receives *Context directly.

// guardIterationsRemain allows another completion within the iteration budget.
func guardIterationsRemain(ctx *Context, _ statekit.Event) bool {
	if ctx == nil {
		return false
	}
	return ctx.Iterations < ctx.MaxIterations
}

// guardRetryAvailable allows a re-prompt after a parse failure while both the
// retry and iteration budgets last.
func guardRetryAvailable(ctx *Context, e statekit.Event) bool {
	if ctx == nil {
		return false
	}
	return ctx.ParseFailures < ctx.ParseRetries && guardIterationsRemain(ctx, e)
}

// Package optimistic applies a local change right away and undoes it if the
// request that backs it fails.
package optimistic

import (
	"context"

	"github.com/njyeung/sofa/dialog"
	"github.com/njyeung/sofa/lifecycle"
	"github.com/njyeung/sofa/telemetry"
)

// DefaultFailure is shown when a Command sets no Failure notice.
var DefaultFailure = dialog.Notice{
	Title:   "Something went wrong",
	Message: "Your change could not be saved. Please try again later.",
}

// Command is one optimistic mutation.
type Command struct {
	// Resource names what is being changed, for metrics.
	Resource string

	// Apply runs synchronously on Run.
	Apply func()
	// Commit performs the request in the background.
	Commit func(ctx context.Context) error
	// Rollback undoes Apply after Commit fails.
	Rollback func()
	// Done runs after Commit succeeds.
	Done func()

	// Failure overrides DefaultFailure. Quiet suppresses the notice.
	Failure *dialog.Notice
	Quiet   bool
}

// Runner executes Commands within a scope.
type Runner struct {
	scope    *lifecycle.Scope
	notifier dialog.Notifier
	reporter *telemetry.Reporter
}

// NewRunner returns a Runner. notifier and reporter may be nil.
func NewRunner(scope *lifecycle.Scope, notifier dialog.Notifier, reporter *telemetry.Reporter) *Runner {
	return &Runner{scope: scope, notifier: notifier, reporter: reporter}
}

// Run applies cmd and starts its commit. It returns false if the scope is
// already closed, in which case nothing is applied.
func (r *Runner) Run(cmd Command) bool {
	if !r.scope.Active() {
		return false
	}
	if cmd.Apply != nil {
		cmd.Apply()
	}
	return r.scope.Go(func(ctx context.Context) func() {
		err := cmd.Commit(ctx)
		if err == nil {
			return cmd.Done
		}
		return func() {
			if cmd.Rollback != nil {
				cmd.Rollback()
			}
			r.reporter.RecordRollback(ctx, cmd.Resource, err)
			if cmd.Quiet || r.notifier == nil {
				return
			}
			notice := DefaultFailure
			if cmd.Failure != nil {
				notice = *cmd.Failure
			}
			r.notifier.Notify(notice)
		}
	})
}

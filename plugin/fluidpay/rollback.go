package fluidpay

import (
	"context"
	"errors"
	"fmt"
)

type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

// rollback is a LIFO stack of compensating actions for one call.
type rollback struct {
	steps []compensation
}

func (r *rollback) push(name string, fn func(ctx context.Context) error) {
	r.steps = append(r.steps, compensation{name: name, fn: fn})
}

// replace drops every pending compensation and installs a single one.
func (r *rollback) replace(name string, fn func(ctx context.Context) error) {
	r.steps = r.steps[:0]
	r.push(name, fn)
}

// run unwinds the stack and joins cause with any compensation failure.
// Compensations run on a context detached from cancellation so a cancelled
// request still returns custody.
func (r *rollback) run(ctx context.Context, cause error) error {
	ctx = context.WithoutCancel(ctx)
	var failed []error
	for i := len(r.steps) - 1; i >= 0; i-- {
		step := r.steps[i]
		if err := step.fn(ctx); err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	r.steps = nil
	if len(failed) == 0 {
		return cause
	}
	return errors.Join(cause, fmt.Errorf("%w: %w", ErrRollbackFailed, errors.Join(failed...)))
}

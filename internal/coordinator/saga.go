package coordinator

import (
	"context"
	"log/slog"
)

// Step represents a single unit of work in the Saga.
// Each step must have a compensating action to undo its effects.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// Orchestrator manages the execution of a collection of Steps.
type Orchestrator struct {
	id     string
	steps  []Step
	logger *slog.Logger
}

func NewOrchestrator(id string, steps []Step) *Orchestrator {
	return &Orchestrator{
		id:     id,
		steps:  steps,
		logger: slog.Default().With("saga_id", id),
	}
}

// Start runs the saga steps sequentially.
// If a step fails, it triggers the compensation of all previously successful steps
// and returns the step's error unchanged.
func (o *Orchestrator) Start(ctx context.Context) error {
	var successfulSteps []Step

	for _, step := range o.steps {
		o.logger.DebugContext(ctx, "executing step", "step", step.Name())
		if err := step.Execute(ctx); err != nil {
			o.logger.WarnContext(ctx, "step failed, starting rollback", "step", step.Name(), "error", err)
			o.rollback(ctx, successfulSteps)
			return err
		}
		// Track successful step for potential compensation (LIFO)
		successfulSteps = append(successfulSteps, step)
	}

	o.logger.DebugContext(ctx, "saga completed successfully")
	return nil
}

func (o *Orchestrator) rollback(ctx context.Context, steps []Step) {
	// Compensations must run even if the request context was cancelled.
	ctx = context.WithoutCancel(ctx)
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		o.logger.InfoContext(ctx, "compensating step", "step", step.Name())
		if err := step.Compensate(ctx); err != nil {
			o.logger.ErrorContext(ctx, "CRITICAL: failed to compensate step", "step", step.Name(), "error", err)
		}
	}
}

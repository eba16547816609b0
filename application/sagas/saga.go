// Package sagas runs multi-write operations as a sequence of steps that are
// undone in reverse order when a later step fails.
package sagas

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Step is one write of a saga. Compensate undoes Execute and may be nil for
// a step that needs no undo.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
	MaxRetries int
	RetryDelay time.Duration
	// Retryable limits retries to errors it accepts; nil retries every error
	Retryable func(err error) bool
}

// State represents the current state of a saga execution
type State string

const (
	StatePending      State = "PENDING"
	StateRunning      State = "RUNNING"
	StateCompleted    State = "COMPLETED"
	StateCompensating State = "COMPENSATING"
	StateCompensated  State = "COMPENSATED"
	StateFailed       State = "FAILED"
)

// Saga orchestrates a series of steps with compensation logic
type Saga struct {
	id        string
	name      string
	steps     []Step
	completed []Step
	state     State
	logger    *zap.Logger
}

// New creates a saga
func New(name string, logger *zap.Logger) *Saga {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saga{
		id:     uuid.New().String(),
		name:   name,
		state:  StatePending,
		logger: logger,
	}
}

// Step appends a step and returns the saga for chaining
func (s *Saga) Step(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// ID returns the saga ID
func (s *Saga) ID() string { return s.id }

// State returns the current state of the saga
func (s *Saga) State() State { return s.state }

// Execute runs the steps in order. When one fails, the completed steps are
// compensated newest first and the step's error is returned. Compensation
// runs on a context that survives cancellation of ctx.
func (s *Saga) Execute(ctx context.Context) error {
	s.state = StateRunning
	s.logger.Debug("Starting saga",
		zap.String("saga_id", s.id),
		zap.String("saga", s.name),
		zap.Int("steps", len(s.steps)),
	)

	for _, step := range s.steps {
		if err := s.run(ctx, step); err != nil {
			s.logger.Warn("Saga step failed",
				zap.String("saga_id", s.id),
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)

			if cerr := s.compensate(context.WithoutCancel(ctx)); cerr != nil {
				s.state = StateFailed
				return fmt.Errorf("saga %s: step %s: %w (compensation: %v)", s.name, step.Name, err, cerr)
			}
			s.state = StateCompensated
			return err
		}
		s.completed = append(s.completed, step)
	}

	s.state = StateCompleted
	s.logger.Debug("Saga completed",
		zap.String("saga_id", s.id),
		zap.String("saga", s.name),
	)
	return nil
}

func (s *Saga) run(ctx context.Context, step Step) error {
	attempts := step.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = step.Execute(ctx); err == nil {
			return nil
		}
		if attempt == attempts || (step.Retryable != nil && !step.Retryable(err)) {
			break
		}

		s.logger.Debug("Retrying saga step",
			zap.String("saga_id", s.id),
			zap.String("step", step.Name),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step.RetryDelay):
		}
	}
	return err
}

// compensate undoes completed steps newest first. It keeps going after a
// failed compensation and reports all of them.
func (s *Saga) compensate(ctx context.Context) error {
	s.state = StateCompensating

	var errs []error
	for i := len(s.completed) - 1; i >= 0; i-- {
		step := s.completed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.logger.Error("Saga compensation failed",
				zap.String("saga_id", s.id),
				zap.String("step", step.Name),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
		}
	}
	return errors.Join(errs...)
}

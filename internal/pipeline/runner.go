package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// StageResult is the outcome of one stage in a run.
type StageResult struct {
	Stage    string
	Skipped  bool // artifact already complete, nothing ran
	Err      error
	Duration time.Duration
}

// RunResult collects every stage's outcome for a job. A failed stage never
// aborts the run: later stages decide for themselves whether they can work
// from what exists, and the caller gets the full per-stage error list.
type RunResult struct {
	Stages []StageResult
}

// Failed reports whether any stage errored.
func (r *RunResult) Failed() bool {
	for _, s := range r.Stages {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Errs returns the stage errors in run order.
func (r *RunResult) Errs() []error {
	var errs []error
	for _, s := range r.Stages {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Stage, s.Err))
		}
	}
	return errs
}

// Runner executes a selection of stages in dependency order. Stages in the
// same dependency level run concurrently; every stage is internally
// sequential and paced through the env's shared RateLimiter.
type Runner struct {
	registry *Registry
	logger   *slog.Logger
}

// NewRunner creates a runner over the given stage registry.
func NewRunner(registry *Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{registry: registry, logger: logger}
}

// Run executes the named stages against env. Completed stages are skipped;
// the rest run to completion or first unit failure. The returned error
// covers only setup problems (unknown stage, cycle); stage failures live in
// the result.
func (r *Runner) Run(ctx context.Context, env *Env, stageNames []string) (*RunResult, error) {
	levels, err := r.registry.Levels(stageNames)
	if err != nil {
		return nil, err
	}

	result := &RunResult{}
	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		slots := make([]StageResult, len(level))
		g := new(errgroup.Group)
		for i, stage := range level {
			g.Go(func() error {
				slots[i] = r.runStage(ctx, env, stage)
				return nil
			})
		}
		// Goroutines report through slots; Wait only synchronizes.
		_ = g.Wait()
		result.Stages = append(result.Stages, slots...)
	}

	return result, nil
}

func (r *Runner) runStage(ctx context.Context, env *Env, stage Stage) StageResult {
	logger := r.logger.With("stage", stage.Name(), "paper", env.PaperID)

	if stage.Complete(env) {
		logger.Info("stage already complete, skipping")
		return StageResult{Stage: stage.Name(), Skipped: true}
	}

	logger.Info("stage starting")
	start := time.Now()
	err := stage.Run(ctx, env)
	duration := time.Since(start)

	if err != nil {
		logger.Error("stage failed", "error", err, "took", duration)
	} else {
		logger.Info("stage complete", "took", duration)
	}
	return StageResult{Stage: stage.Name(), Err: err, Duration: duration}
}

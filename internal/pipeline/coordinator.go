package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papermill/papermill/internal/artifact"
	"github.com/papermill/papermill/internal/home"
	"github.com/papermill/papermill/internal/ledger"
	"github.com/papermill/papermill/internal/providers"
)

// JobStatus is the lifecycle state of one paper job.
type JobStatus string

const (
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job tracks one paper's run through the pipeline.
type Job struct {
	ID        string
	PaperID   string
	PDFPath   string
	Status    JobStatus
	Stages    []StageResult
	Usage     ledger.Snapshot
	StartedAt time.Time
	EndedAt   time.Time
}

// Coordinator owns the shared pipeline dependencies and tracks jobs by ID.
// Multiple papers may process concurrently; each job gets its own artifact
// store while the provider registry, ledger, and pacer are shared.
type Coordinator struct {
	home     *home.Dir
	registry *providers.Registry
	stages   *Registry
	ledger   *ledger.Ledger
	pacer    *providers.RateLimiter
	logger   *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewCoordinator creates a coordinator over the shared dependencies.
// unitDelay spaces all provider calls the coordinator's jobs make.
func NewCoordinator(h *home.Dir, reg *providers.Registry, led *ledger.Ledger, unitDelay time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		home:     h,
		registry: reg,
		stages:   DefaultRegistry(),
		ledger:   led,
		pacer:    providers.NewRateLimiter(unitDelay),
		logger:   logger,
		jobs:     make(map[string]*Job),
	}
}

// Ledger returns the shared usage ledger.
func (c *Coordinator) Ledger() *ledger.Ledger {
	return c.ledger
}

// Stages returns the stage names available to Process, in canonical order.
func (c *Coordinator) Stages() []string {
	return c.stages.Names()
}

// Process runs the named stages (all stages when empty) for one PDF and
// blocks until they finish. The returned job carries the per-stage results
// and the ledger snapshot at completion; a failed stage marks the job failed
// but never discards completed artifacts.
func (c *Coordinator) Process(ctx context.Context, pdfPath string, stageNames []string, opts Options) (*Job, error) {
	paperID := PaperIDFromPath(pdfPath)
	if paperID == "" {
		return nil, fmt.Errorf("cannot derive paper ID from %q", pdfPath)
	}
	if len(stageNames) == 0 {
		stageNames = c.stages.Names()
	}

	if err := c.home.EnsurePaperDir(paperID); err != nil {
		return nil, err
	}
	store, err := artifact.NewStore(c.home.PaperDir(paperID))
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:        uuid.New().String(),
		PaperID:   paperID,
		PDFPath:   pdfPath,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	c.mu.Lock()
	c.jobs[job.ID] = job
	c.mu.Unlock()

	c.logger.Info("job started", "job", job.ID, "paper", paperID, "stages", strings.Join(stageNames, ","))

	env := &Env{
		PaperID:  paperID,
		PDFPath:  pdfPath,
		Registry: c.registry,
		Ledger:   c.ledger,
		Store:    store,
		Home:     c.home,
		Pacer:    c.pacer,
		Options:  opts,
		Logger:   c.logger,
	}

	result, err := NewRunner(c.stages, c.logger).Run(ctx, env, stageNames)
	if result == nil {
		result = &RunResult{}
	}

	c.mu.Lock()
	job.Stages = result.Stages
	job.Usage = c.ledger.Snapshot()
	job.EndedAt = time.Now()
	if err != nil || result.Failed() {
		job.Status = StatusFailed
	} else {
		job.Status = StatusCompleted
	}
	c.mu.Unlock()

	// Persist the usage snapshot next to the artifacts so `papermill usage`
	// can report cost after the process exits.
	if encoded, jsonErr := json.MarshalIndent(job.Usage, "", "  "); jsonErr == nil {
		if writeErr := store.Write(home.UsageFileName, encoded); writeErr != nil {
			c.logger.Warn("failed to persist usage snapshot", "paper", paperID, "error", writeErr)
		}
	}

	c.logger.Info("job finished", "job", job.ID, "status", job.Status, "took", job.EndedAt.Sub(job.StartedAt))
	return job, err
}

// Get returns a job by ID.
func (c *Coordinator) Get(jobID string) (*Job, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	job, ok := c.jobs[jobID]
	return job, ok
}

// List returns all jobs, newest first.
func (c *Coordinator) List() []*Job {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Job, 0, len(c.jobs))
	for _, job := range c.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

var paperIDSanitizer = regexp.MustCompile(`[^a-z0-9._-]+`)

// PaperIDFromPath derives a filesystem-safe paper ID from the source PDF
// name: "My Paper (v2).pdf" becomes "my-paper-v2".
func PaperIDFromPath(pdfPath string) string {
	base := filepath.Base(pdfPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToLower(base)
	base = paperIDSanitizer.ReplaceAllString(base, "-")
	return strings.Trim(base, "-.")
}

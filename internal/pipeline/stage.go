// Package pipeline runs a paper through its processing stages: OCR, page
// translation, polish, section planning, blog writing, and slide generation.
// Stages are strictly sequential inside (one provider call at a time, paced),
// checkpoint their artifact after every unit of work, and resume from the
// artifact on restart. Stages with no dependency between them may run
// concurrently within one job.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/papermill/papermill/internal/artifact"
	"github.com/papermill/papermill/internal/home"
	"github.com/papermill/papermill/internal/ledger"
	"github.com/papermill/papermill/internal/providers"
)

// Stage is the interface all pipeline stages implement.
// Each stage owns exactly one artifact file and tracks its own completion by
// inspecting it, so a re-run skips finished work without external state.
type Stage interface {
	// Identity
	Name() string           // e.g. "translate", "blog"
	Dependencies() []string // Stages that must be ordered before this one

	Description() string

	// Artifact returns the file this stage writes in the paper directory.
	Artifact() string

	// Complete reports whether this stage's artifact is already finished.
	Complete(env *Env) bool

	// Run executes the stage to completion, resuming from any partial
	// artifact. A unit failure aborts the stage; checkpoints written so far
	// are kept.
	Run(ctx context.Context, env *Env) error
}

// Options tunes stage behavior for one job.
type Options struct {
	// OCRProvider, Translator and Generator name registry entries.
	OCRProvider string
	Translator  string
	Generator   string

	// TargetLanguage is the translation target, e.g. "Chinese".
	TargetLanguage string

	// UnitDelay is the fixed spacing between provider calls within a stage.
	UnitDelay time.Duration

	// ContextChars bounds the trailing context carried between units.
	ContextChars int
}

// Env carries the shared dependencies and per-paper state every stage uses.
// The coordinator builds one Env per job.
type Env struct {
	PaperID string
	PDFPath string

	Registry *providers.Registry
	Ledger   *ledger.Ledger
	Store    *artifact.Store
	Home     *home.Dir
	Pacer    *providers.RateLimiter
	Options  Options
	Logger   *slog.Logger
}

// trailingContext returns the last Options.ContextChars characters of text,
// cut on a rune boundary so multi-byte characters are never split.
func (e *Env) trailingContext(text string) string {
	limit := e.Options.ContextChars
	if limit <= 0 || len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[len(runes)-limit:])
}

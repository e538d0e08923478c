package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// unitState tracks where the unit loop is for one unit of work. The loop
// advances requesting → recording → appending → checkpointing; a failure
// leaves earlier checkpoints intact.
type unitState int

const (
	unitRequesting unitState = iota
	unitRecording
	unitAppending
	unitCheckpointing
)

func (s unitState) String() string {
	switch s {
	case unitRequesting:
		return "requesting"
	case unitRecording:
		return "recording"
	case unitAppending:
		return "appending"
	case unitCheckpointing:
		return "checkpointing"
	default:
		return "unknown"
	}
}

// sectionMarkerFormat delimits accumulated units in artifacts that are
// rendered clean once the stage completes (blog, slides). Translation
// artifacts keep page markers permanently so downstream stages can re-split
// them.
const sectionMarkerFormat = "<!-- SECTION %d -->"

var sectionMarkerPattern = regexp.MustCompile(`<!-- SECTION \d+ -->\n?`)

// sectionMarker renders the boundary marker for a unit index.
func sectionMarker(index int) string {
	return fmt.Sprintf(sectionMarkerFormat, index)
}

// splitSections splits a partial artifact back into its accumulated units.
// Content with no markers is not a partial artifact and yields nil.
func splitSections(content string) []string {
	if !sectionMarkerPattern.MatchString(content) {
		return nil
	}
	parts := sectionMarkerPattern.Split(content, -1)
	if len(parts) > 0 && strings.TrimSpace(parts[0]) == "" {
		parts = parts[1:]
	}
	return parts
}

// joinSections renders accumulated units with markers (partial form).
func joinSections(done []string) string {
	var b strings.Builder
	for i, piece := range done {
		b.WriteString(sectionMarker(i))
		b.WriteString("\n")
		b.WriteString(piece)
	}
	return b.String()
}

// unitLoop drives the checkpoint loop shared by all chunked stages: process
// one unit at a time, append its output, and atomically rewrite the artifact
// after every unit so an interrupted run loses at most the unit in flight.
type unitLoop struct {
	// Stage name, for logging.
	Stage string

	// Artifact is the checkpoint file.
	Artifact string

	// Render produces the artifact content for the units finished so far.
	Render func(done []string) string

	// Finalize produces the artifact content once every unit is done. Nil
	// means Render is also the final form.
	Finalize func(done []string) string

	// Process produces the output of unit index. done holds the outputs of
	// all earlier units.
	Process func(ctx context.Context, index int, done []string) (string, error)
}

// run executes units len(done)..total-1, pacing provider calls through the
// env's shared pacer. The pacer makes the first call immediate and spaces
// later ones, so no delay trails the last unit.
func (e *Env) runUnits(ctx context.Context, loop unitLoop, done []string, total int) error {
	logger := e.Logger.With("stage", loop.Stage, "paper", e.PaperID)
	if len(done) > 0 {
		logger.Info("resuming from checkpoint", "completed_units", len(done), "total_units", total)
	}

	for index := len(done); index < total; index++ {
		start := time.Now()

		logger.Debug("unit state", "unit", index, "state", unitRequesting.String())
		piece, err := loop.Process(ctx, index, done)
		if err != nil {
			return fmt.Errorf("%s unit %d: %w", loop.Stage, index, err)
		}

		// Recording happens inside Process at the provider call site; the
		// appended unit below is already accounted for.
		logger.Debug("unit state", "unit", index, "state", unitAppending.String())
		done = append(done, piece)

		logger.Debug("unit state", "unit", index, "state", unitCheckpointing.String())
		if err := e.Store.WriteString(loop.Artifact, loop.Render(done)); err != nil {
			return fmt.Errorf("%s unit %d checkpoint: %w", loop.Stage, index, err)
		}

		logger.Info("unit complete", "unit", index+1, "of", total, "took", time.Since(start))
	}

	if loop.Finalize != nil {
		if err := e.Store.WriteString(loop.Artifact, loop.Finalize(done)); err != nil {
			return fmt.Errorf("%s finalize: %w", loop.Stage, err)
		}
	}
	return nil
}

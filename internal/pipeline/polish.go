package pipeline

import (
	"context"
	"strings"

	"github.com/papermill/papermill/internal/chunk"
	"github.com/papermill/papermill/internal/home"
	"github.com/papermill/papermill/internal/prompts/polish"
)

// PolishStage refines the raw translation page by page into natural prose in
// the target language. Structurally it is the translate stage with different
// prompts, except that the final artifact is rendered marker-free: readers
// and downstream prompts get plain prose, while checkpoints keep the page
// markers for resume.
type PolishStage struct{}

func (s *PolishStage) Name() string { return "polish" }

func (s *PolishStage) Dependencies() []string { return []string{"translate"} }

func (s *PolishStage) Artifact() string { return home.ArtifactTranslation }

func (s *PolishStage) Description() string {
	return "Polish the raw translation page by page into natural prose"
}

func (s *PolishStage) Complete(env *Env) bool {
	data, err := env.Store.Read(home.ArtifactTranslation)
	if err != nil {
		return false
	}
	// A marker-bearing file is a checkpoint; the finalized artifact has no
	// page markers.
	return strings.TrimSpace(string(data)) != "" && !chunk.HasPageMarkers(string(data))
}

func (s *PolishStage) Run(ctx context.Context, env *Env) error {
	return runPageTranslation(ctx, env, pageTranslationJob{
		Stage:    s.Name(),
		Input:    home.ArtifactTranslationRaw,
		Output:   home.ArtifactTranslation,
		Feature:  "polish",
		Client:   env.Options.Translator,
		System:   polish.SystemPrompt(env.Options.TargetLanguage),
		Finalize: renderCleanPages,
		Prompt: func(pageText, tail string) string {
			return polish.UserPrompt(pageText, tail)
		},
	})
}

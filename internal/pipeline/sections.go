package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/papermill/papermill/internal/chunk"
	"github.com/papermill/papermill/internal/home"
	"github.com/papermill/papermill/internal/prompts/sections"
	"github.com/papermill/papermill/internal/providers"
)

// SectionsStage asks the generator model for a JSON plan of blog sections
// over the best available translation. Structured output is the stage's
// whole deliverable, so a plan that fails schema validation fails the stage;
// the blog and slides stages degrade to a single-section plan when no
// artifact is present.
type SectionsStage struct{}

func (s *SectionsStage) Name() string { return "sections" }

func (s *SectionsStage) Dependencies() []string { return []string{"polish"} }

func (s *SectionsStage) Artifact() string { return home.ArtifactSections }

func (s *SectionsStage) Description() string {
	return "Plan the blog sections for the paper as schema-validated JSON"
}

func (s *SectionsStage) Complete(env *Env) bool {
	return env.Store.Exists(home.ArtifactSections)
}

func (s *SectionsStage) Run(ctx context.Context, env *Env) error {
	document, err := readBestTranslation(env)
	if err != nil {
		return err
	}

	content, err := env.chatCall(ctx, env.Options.Generator, "sections", &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: sections.SystemPrompt()},
			{Role: "user", Content: sections.UserPrompt(document)},
		},
		JSONOnly: true,
	})
	if err != nil {
		return err
	}

	var plan sections.Plan
	if err := providers.DecodeModelJSON(content, sections.PlanSchema, &plan); err != nil {
		return fmt.Errorf("section plan: %w", err)
	}

	encoded, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("encode section plan: %w", err)
	}
	if err := env.Store.Write(home.ArtifactSections, encoded); err != nil {
		return fmt.Errorf("write section plan: %w", err)
	}

	env.Logger.Info("section plan ready", "paper", env.PaperID, "sections", len(plan.Sections))
	return nil
}

// readBestTranslation returns the highest-priority translation artifact
// available for the paper. Page markers are stripped: prompts get prose, the
// markers are a checkpointing detail of the translation artifacts.
func readBestTranslation(env *Env) (string, error) {
	name := env.Store.FirstExisting(home.TranslationPriority()...)
	if name == "" {
		return "", fmt.Errorf("no translation artifact found for %s", env.PaperID)
	}
	data, err := env.Store.Read(name)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	if !chunk.HasPageMarkers(string(data)) {
		return string(data), nil
	}
	return renderCleanPages(chunk.SplitPages(string(data))), nil
}

// loadPlan reads the section plan, degrading to a single section covering
// the whole paper when the plan artifact is missing or unreadable.
func loadPlan(env *Env, fallbackTitle string) sections.Plan {
	data, err := env.Store.Read(home.ArtifactSections)
	if err == nil {
		var plan sections.Plan
		if jsonErr := json.Unmarshal(data, &plan); jsonErr == nil && len(plan.Sections) > 0 {
			return plan
		}
	}

	env.Logger.Warn("no usable section plan, degrading to a single section", "paper", env.PaperID)
	return sections.Plan{Sections: []sections.Section{{
		Title:   fallbackTitle,
		Summary: "The whole paper, presented as one section.",
	}}}
}

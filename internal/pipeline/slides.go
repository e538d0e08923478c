package pipeline

import (
	"context"
	"strings"

	"github.com/papermill/papermill/internal/home"
	"github.com/papermill/papermill/internal/paper"
	"github.com/papermill/papermill/internal/prompts/slides"
	"github.com/papermill/papermill/internal/providers"
)

// SlidesStage builds a Marp-style deck one planned section at a time,
// carrying the accumulated deck between calls. Independent of the blog
// stage: both read the section plan and the translation.
type SlidesStage struct{}

func (s *SlidesStage) Name() string { return "slides" }

func (s *SlidesStage) Dependencies() []string { return []string{"sections"} }

func (s *SlidesStage) Artifact() string { return home.ArtifactSlides }

func (s *SlidesStage) Description() string {
	return "Generate a slide deck for the paper section by section"
}

func (s *SlidesStage) Complete(env *Env) bool {
	return sectionedArtifactComplete(env, home.ArtifactSlides)
}

func (s *SlidesStage) Run(ctx context.Context, env *Env) error {
	document, err := readBestTranslation(env)
	if err != nil {
		return err
	}

	meta, _ := paper.LoadMetadata(env.Home.MetadataPath(env.PaperID))
	plan := loadPlan(env, fallbackTitle(meta))
	done := resumeSections(env, home.ArtifactSlides, len(plan.Sections))

	loop := unitLoop{
		Stage:    s.Name(),
		Artifact: home.ArtifactSlides,
		Render:   joinSections,
		Finalize: func(done []string) string {
			return renderDeck(done, blogTitle(meta))
		},
		Process: func(ctx context.Context, index int, done []string) (string, error) {
			section := plan.Sections[index]
			content, err := env.chatCall(ctx, env.Options.Generator, "slides", &providers.ChatRequest{
				Messages: []providers.Message{
					{Role: "system", Content: slides.SystemPrompt(env.Options.TargetLanguage)},
					{Role: "user", Content: slides.UserPrompt(slides.UserPromptData{
						Document:       document,
						PaperContext:   meta.PromptContext(),
						PriorSlides:    strings.Join(done, "\n"),
						SectionTitle:   section.Title,
						SectionSummary: section.Summary,
					})},
				},
			})
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(providers.StripCodeFence(content)), nil
		},
	}

	return env.runUnits(ctx, loop, done, len(plan.Sections))
}

// renderDeck joins the finished slide groups, opening with a title slide
// when the paper's title is known.
func renderDeck(done []string, title string) string {
	var b strings.Builder
	if title != "" {
		b.WriteString("# ")
		b.WriteString(title)
		b.WriteString("\n")
	}
	for _, piece := range done {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		if !strings.HasPrefix(piece, "---") {
			b.WriteString("\n---\n\n")
		} else {
			b.WriteString("\n")
		}
		b.WriteString(piece)
		b.WriteString("\n")
	}
	return b.String()
}

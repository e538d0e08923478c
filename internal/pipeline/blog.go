package pipeline

import (
	"context"
	"strings"

	"github.com/papermill/papermill/internal/home"
	"github.com/papermill/papermill/internal/paper"
	"github.com/papermill/papermill/internal/prompts/blog"
	"github.com/papermill/papermill/internal/providers"
)

// BlogStage writes the blog post one planned section at a time, feeding each
// call the full translated paper, everything written so far, and the figures
// that survived triage. The artifact carries section markers while partial
// and is rendered clean when the last section lands.
type BlogStage struct{}

func (s *BlogStage) Name() string { return "blog" }

func (s *BlogStage) Dependencies() []string { return []string{"sections"} }

func (s *BlogStage) Artifact() string { return home.ArtifactBlog }

func (s *BlogStage) Description() string {
	return "Write the blog post section by section with triaged figures"
}

func (s *BlogStage) Complete(env *Env) bool {
	return sectionedArtifactComplete(env, home.ArtifactBlog)
}

func (s *BlogStage) Run(ctx context.Context, env *Env) error {
	doc, err := loadDocument(env)
	if err != nil {
		return err
	}

	meta := doc.Meta
	plan := loadPlan(env, fallbackTitle(meta))
	done := resumeSections(env, home.ArtifactBlog, len(plan.Sections))

	// Figure triage costs provider calls; skip it when every section is
	// already checkpointed.
	var figures []figureChoice
	if len(done) < len(plan.Sections) {
		figures = env.selectFigures(ctx, doc, plan)
	}

	loop := unitLoop{
		Stage:    s.Name(),
		Artifact: home.ArtifactBlog,
		Render:   joinSections,
		Finalize: func(done []string) string {
			return renderCleanSections(done, blogTitle(meta))
		},
		Process: func(ctx context.Context, index int, done []string) (string, error) {
			section := plan.Sections[index]
			content, err := env.chatCall(ctx, env.Options.Generator, "blog", &providers.ChatRequest{
				Messages: []providers.Message{
					{Role: "system", Content: blog.SystemPrompt(env.Options.TargetLanguage)},
					{Role: "user", Content: blog.UserPrompt(blog.UserPromptData{
						Document:       doc.Text,
						PaperContext:   meta.PromptContext(),
						PriorSections:  strings.Join(done, "\n\n"),
						Images:         figureList(figures, section.Title),
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

// sectionedArtifactComplete reports whether a marker-accumulated artifact
// has been rendered to its final, marker-free form.
func sectionedArtifactComplete(env *Env, name string) bool {
	data, err := env.Store.Read(name)
	if err != nil {
		return false
	}
	return !sectionMarkerPattern.Match(data)
}

// resumeSections recovers the units a previous run checkpointed into a
// marker-accumulated artifact. capacity guards against a plan that shrank
// between runs.
func resumeSections(env *Env, name string, capacity int) []string {
	data, err := env.Store.Read(name)
	if err != nil {
		return nil
	}
	done := splitSections(string(data))
	if len(done) > capacity {
		done = done[:capacity]
	}
	return done
}

// renderCleanSections joins finished sections without markers, under a
// title heading when one is known.
func renderCleanSections(done []string, title string) string {
	var b strings.Builder
	if title != "" {
		b.WriteString("# ")
		b.WriteString(title)
		b.WriteString("\n\n")
	}
	for i, piece := range done {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(piece))
	}
	b.WriteString("\n")
	return b.String()
}

// figureList renders the figures assigned to the named section as
// "ref - caption" lines for the prompt, with the deep analysis indented
// beneath. Figures with no assigned section are offered to every section.
func figureList(figures []figureChoice, sectionTitle string) string {
	var lines []string
	for _, f := range figures {
		if f.TargetSection != "" && f.TargetSection != sectionTitle {
			continue
		}
		line := f.Ref + " - " + f.Caption
		if f.Analysis != "" {
			line += "\n  " + f.Analysis
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// fallbackTitle names the degraded single section when no plan exists.
func fallbackTitle(meta *paper.Metadata) string {
	if meta != nil && meta.Title != "" {
		return meta.Title
	}
	return "Overview"
}

// blogTitle is the post's H1; empty when the paper has no metadata.
func blogTitle(meta *paper.Metadata) string {
	if meta != nil {
		return meta.Title
	}
	return ""
}

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/papermill/papermill/internal/chunk"
	"github.com/papermill/papermill/internal/home"
	"github.com/papermill/papermill/internal/prompts/translate"
	"github.com/papermill/papermill/internal/providers"
)

// TranslateStage translates the OCR output page by page into the target
// language. Image references pass through verbatim: each page is split into
// text and image chunks, only the text chunks go to the model, and the page
// is reassembled in order. The artifact keeps the page markers so the polish
// stage can re-split it.
type TranslateStage struct{}

func (s *TranslateStage) Name() string { return "translate" }

func (s *TranslateStage) Dependencies() []string { return []string{"ocr"} }

func (s *TranslateStage) Artifact() string { return home.ArtifactTranslationRaw }
func (s *TranslateStage) Description() string {
	return "Translate OCR markdown page by page, carrying trailing context between pages"
}

func (s *TranslateStage) Complete(env *Env) bool {
	return translationComplete(env, home.ArtifactTranslationRaw, home.ArtifactOCR)
}

func (s *TranslateStage) Run(ctx context.Context, env *Env) error {
	return runPageTranslation(ctx, env, pageTranslationJob{
		Stage:   s.Name(),
		Input:   home.ArtifactOCR,
		Output:  home.ArtifactTranslationRaw,
		Feature: "translate",
		Client:  env.Options.Translator,
		System:  translate.SystemPrompt(env.Options.TargetLanguage),
		Prompt: func(pageText, tail string) string {
			return translate.UserPrompt(env.Options.TargetLanguage, pageText, tail)
		},
	})
}

// translationComplete reports whether output holds as many pages as input.
// Both artifacts are page-marker delimited; equal counts mean the last page
// was checkpointed.
func translationComplete(env *Env, output, input string) bool {
	out, err := env.Store.Read(output)
	if err != nil {
		return false
	}
	in, err := env.Store.Read(input)
	if err != nil {
		return false
	}
	return len(chunk.SplitPages(string(out))) >= len(chunk.SplitPages(string(in)))
}

// pageTranslationJob parameterizes the shared page loop used by the
// translate and polish stages, which differ only in prompts, artifacts,
// ledger feature, and final rendering.
type pageTranslationJob struct {
	Stage   string
	Input   string
	Output  string
	Feature string
	Client  string
	System  string
	Prompt  func(pageText, tail string) string

	// Finalize, when set, renders the artifact marker-free once the last
	// page is done. Checkpoints always keep page markers for resume.
	Finalize func(done []string) string
}

func runPageTranslation(ctx context.Context, env *Env, job pageTranslationJob) error {
	input, err := env.Store.Read(job.Input)
	if err != nil {
		return fmt.Errorf("read %s: %w", job.Input, err)
	}
	pages := chunk.SplitPages(string(input))

	// Resume from whatever the last run checkpointed. An output without
	// markers is a finalized artifact, not a single-page checkpoint.
	var done []string
	if existing, err := env.Store.Read(job.Output); err == nil {
		if job.Finalize != nil && strings.TrimSpace(string(existing)) != "" && !chunk.HasPageMarkers(string(existing)) {
			return nil
		}
		done = chunk.SplitPages(string(existing))
		if len(done) == 1 && strings.TrimSpace(done[0]) == "" {
			done = nil
		}
		if len(done) > len(pages) {
			done = done[:len(pages)]
		}
	}

	loop := unitLoop{
		Stage:    job.Stage,
		Artifact: job.Output,
		Render:   renderPages,
		Finalize: job.Finalize,
		Process: func(ctx context.Context, index int, done []string) (string, error) {
			page := pages[index]

			// Pages with no prose need no provider call.
			if !pageHasText(page) {
				return page, nil
			}

			tail := env.trailingContext(strings.Join(done, "\n"))
			var out strings.Builder
			for _, c := range chunk.SplitImages(page) {
				if c.IsImage || strings.TrimSpace(c.Text) == "" {
					out.WriteString(c.Text)
					continue
				}
				content, err := env.chatCall(ctx, job.Client, job.Feature, &providers.ChatRequest{
					Messages: []providers.Message{
						{Role: "system", Content: job.System},
						{Role: "user", Content: job.Prompt(c.Text, tail)},
					},
				})
				if err != nil {
					return "", err
				}
				out.WriteString(providers.StripCodeFence(content))
			}
			return out.String(), nil
		},
	}

	return env.runUnits(ctx, loop, done, len(pages))
}

// pageHasText reports whether a page contains any prose outside image
// references.
func pageHasText(page string) bool {
	for _, c := range chunk.SplitImages(page) {
		if !c.IsImage && strings.TrimSpace(c.Text) != "" {
			return true
		}
	}
	return false
}

// renderPages joins translated pages with the same markers the OCR artifact
// uses, so the output can be split identically downstream.
func renderPages(done []string) string {
	var b strings.Builder
	for i, page := range done {
		b.WriteString(chunk.PageMarker(i))
		b.WriteString("\n")
		b.WriteString(page)
		if !strings.HasSuffix(page, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderCleanPages joins finished pages marker-free for a final artifact:
// the reader-facing translation is plain prose, page boundaries are an
// internal checkpointing detail.
func renderCleanPages(pages []string) string {
	var b strings.Builder
	for i, page := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(page))
	}
	b.WriteString("\n")
	return b.String()
}

package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/papermill/papermill/internal/chunk"
	"github.com/papermill/papermill/internal/home"
	"github.com/papermill/papermill/internal/ledger"
	"github.com/papermill/papermill/internal/pdf"
)

// OCRStage converts the source PDF into page-delimited markdown plus
// extracted images. The whole document goes to the OCR provider in one call,
// so there is no per-unit checkpointing here: the artifact appears complete
// or not at all.
type OCRStage struct{}

func (s *OCRStage) Name() string { return "ocr" }

func (s *OCRStage) Dependencies() []string { return nil }

func (s *OCRStage) Artifact() string { return home.ArtifactOCR }

func (s *OCRStage) Description() string {
	return "OCR the source PDF into page-delimited markdown and extract embedded images"
}

func (s *OCRStage) Complete(env *Env) bool {
	return env.Store.Exists(home.ArtifactOCR)
}

func (s *OCRStage) Run(ctx context.Context, env *Env) error {
	logger := env.Logger.With("stage", s.Name(), "paper", env.PaperID)

	info, err := pdf.Inspect(env.PDFPath)
	if err != nil {
		return fmt.Errorf("inspect pdf: %w", err)
	}
	logger.Info("starting OCR", "pages", info.PageCount, "provider", env.Options.OCRProvider)

	document, err := pdf.Read(env.PDFPath)
	if err != nil {
		return fmt.Errorf("read pdf: %w", err)
	}

	client, err := env.Registry.GetOCR(env.Options.OCRProvider)
	if err != nil {
		return err
	}
	if err := env.Pacer.Wait(ctx); err != nil {
		return err
	}
	result, err := client.ProcessDocument(ctx, document)
	if err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("ocr: %s", result.ErrorMessage)
	}
	if len(result.Pages) == 0 {
		return fmt.Errorf("ocr returned no pages")
	}

	// OCR is billed per page, not per token; the ledger still counts the
	// call so usage reports show the provider was involved.
	env.Ledger.Record(client.Name(), "", "ocr", ledger.Usage{})

	var b strings.Builder
	imageCount := 0
	for i, page := range result.Pages {
		b.WriteString(chunk.PageMarker(i))
		b.WriteString("\n")
		b.WriteString(page.Markdown)
		if !strings.HasSuffix(page.Markdown, "\n") {
			b.WriteString("\n")
		}

		for _, img := range page.Images {
			path := env.Home.PaperImagePath(env.PaperID, img.ID)
			if err := os.WriteFile(path, img.Data, 0o644); err != nil {
				return fmt.Errorf("save image %s: %w", img.ID, err)
			}
			imageCount++
		}
	}

	if err := env.Store.WriteString(home.ArtifactOCR, b.String()); err != nil {
		return fmt.Errorf("write ocr artifact: %w", err)
	}

	logger.Info("OCR complete", "pages", len(result.Pages), "images", imageCount)
	return nil
}

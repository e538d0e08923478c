package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/papermill/papermill/internal/chunk"
	"github.com/papermill/papermill/internal/paper"
	"github.com/papermill/papermill/internal/prompts/sections"
	"github.com/papermill/papermill/internal/prompts/triage"
	"github.com/papermill/papermill/internal/providers"
)

// maxFigures caps how many figures a write-up embeds. Papers routinely carry
// a dozen images; a blog post needs the few that carry the argument.
const maxFigures = 3

// maxEssential caps how many figures the batch classification may hold at
// tier 1; the rest are demoted to tier 2.
const maxEssential = 3

// abstractChars bounds the opening slice of the paper shown to the batch
// classification call when no abstract is recorded in the metadata sidecar.
const abstractChars = 1500

// contextWindow is how many bytes around a figure reference (and around its
// cross-references) are shown to the deep-analysis model.
const contextWindow = 400

// figureNumberPattern pulls the figure number out of a reference's alt text
// or nearby caption line.
var figureNumberPattern = regexp.MustCompile(`(?i)(?:figure|fig\.?|图)\s*(\d+)`)

// figureChoice is one triaged figure, ready for prompt assembly.
type figureChoice struct {
	Ref           string // the markdown reference exactly as it appears in the text
	Caption       string
	Analysis      string
	TargetSection string
	Tier          int
}

// selectFigures triages the figures referenced in the document and returns
// the ones worth embedding, most important first, capped at maxFigures. One
// text-only batch call classifies every figure; only tier 1 and 2 figures
// then get a multimodal deep-analysis call each, so skipped figures are
// never billed an image call. When the generator model cannot see images,
// both calls are skipped and the first few figures pass through with
// placeholder captions.
func (e *Env) selectFigures(ctx context.Context, doc *paper.Document, plan sections.Plan) []figureChoice {
	refs := dedupe(chunk.ImageRefs(doc.Text))
	if len(refs) == 0 {
		return nil
	}

	logger := e.Logger.With("paper", e.PaperID)

	client := e.visionClient()
	if client == nil {
		logger.Info("generator model has no vision, skipping figure triage", "figures", len(refs))
		var out []figureChoice
		for _, ref := range refs {
			if len(out) == maxFigures {
				break
			}
			out = append(out, figureChoice{Ref: ref, Caption: "Figure from the paper", Tier: triage.TierUseful})
		}
		return out
	}

	assignments := e.classifyFigures(ctx, doc, plan, refs)

	essential := 0
	var choices []figureChoice
	for _, ref := range refs {
		a := assignments[ref]
		if a.Tier == triage.TierEssential {
			essential++
			if essential > maxEssential {
				a.Tier = triage.TierUseful
			}
		}
		if a.Tier == triage.TierSkip {
			logger.Debug("figure skipped by triage", "ref", ref)
			continue
		}

		analysis := e.analyzeFigure(ctx, doc, ref)
		choices = append(choices, figureChoice{
			Ref:           ref,
			Caption:       analysis.Caption,
			Analysis:      analysis.Analysis,
			TargetSection: a.TargetSection,
			Tier:          a.Tier,
		})
	}

	sort.SliceStable(choices, func(i, j int) bool { return choices[i].Tier < choices[j].Tier })
	if len(choices) > maxFigures {
		choices = choices[:maxFigures]
	}
	return choices
}

// classifyFigures runs the one-shot batch classification over the abstract
// and the figure identifiers, returning an assignment per reference. Any
// failure degrades every unclassified figure to tier 2 in the plan's first
// section: triage bounds cost, it is not a correctness requirement.
func (e *Env) classifyFigures(ctx context.Context, doc *paper.Document, plan sections.Plan, refs []string) map[string]triage.Assignment {
	defaultSection := ""
	if len(plan.Sections) > 0 {
		defaultSection = plan.Sections[0].Title
	}

	assignments := make(map[string]triage.Assignment, len(refs))
	refByID := make(map[string]string, len(refs))
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		assignments[ref] = triage.Assignment{Tier: triage.TierUseful, TargetSection: defaultSection}
		id := figureID(ref)
		if _, taken := refByID[id]; taken {
			continue
		}
		refByID[id] = ref
		ids = append(ids, id)
	}

	abstract := ""
	if doc.Meta != nil {
		abstract = doc.Meta.Abstract
	}
	if abstract == "" {
		abstract = doc.Abstract(abstractChars)
	}
	titles := make([]string, 0, len(plan.Sections))
	for _, s := range plan.Sections {
		titles = append(titles, s.Title)
	}

	content, err := e.chatCall(ctx, e.Options.Generator, "image_triage", &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: triage.SystemPrompt()},
			{Role: "user", Content: triage.UserPrompt(triage.UserPromptData{
				Abstract: abstract,
				Sections: strings.Join(titles, "\n"),
				Figures:  strings.Join(ids, "\n"),
			})},
		},
		JSONOnly: true,
	})
	if err != nil {
		e.Logger.Warn("figure classification call failed, defaulting all figures to tier 2", "error", err)
		return assignments
	}

	var cls triage.Classification
	if err := providers.DecodeModelJSON(content, triage.ClassificationSchema, &cls); err != nil {
		e.Logger.Warn("figure classification returned unusable output, defaulting all figures to tier 2", "error", err)
		return assignments
	}

	for _, a := range cls.Figures {
		ref, ok := refByID[a.ID]
		if !ok {
			continue
		}
		if a.TargetSection == "" {
			a.TargetSection = defaultSection
		}
		assignments[ref] = a
	}
	return assignments
}

// analyzeFigure deep-analyzes one tier 1 or 2 figure: the image bytes plus
// the text around its cross-references go to the vision model. Any failure
// degrades to a placeholder rather than failing the stage: a missing caption
// is a worse outcome than a missing blog post.
func (e *Env) analyzeFigure(ctx context.Context, doc *paper.Document, ref string) triage.Analysis {
	placeholder := triage.Analysis{Caption: "Figure from the paper"}

	img := doc.Image(figureID(ref))
	if img == nil {
		e.Logger.Warn("figure bytes unavailable for analysis", "ref", ref)
		return placeholder
	}

	content, err := e.chatCall(ctx, e.Options.Generator, "image_analysis", &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: triage.AnalysisSystemPrompt(e.Options.TargetLanguage)},
			{
				Role:    "user",
				Content: triage.AnalysisUserPrompt(ref, figureContext(doc.Text, ref)),
				Images:  []providers.ImagePart{{MIMEType: img.MIMEType, Data: img.Data}},
			},
		},
		JSONOnly: true,
	})
	if err != nil {
		e.Logger.Warn("figure analysis call failed", "ref", ref, "error", err)
		return placeholder
	}

	var analysis triage.Analysis
	if err := providers.DecodeModelJSON(content, triage.AnalysisSchema, &analysis); err != nil {
		e.Logger.Warn("figure analysis returned unusable output", "ref", ref, "error", err)
		return placeholder
	}
	return analysis
}

// loadDocument assembles the paper's document model: the best available
// translation text, the metadata sidecar, and the extracted image assets.
func loadDocument(env *Env) (*paper.Document, error) {
	text, err := readBestTranslation(env)
	if err != nil {
		return nil, err
	}

	meta, err := paper.LoadMetadata(env.Home.MetadataPath(env.PaperID))
	if err != nil {
		env.Logger.Warn("metadata sidecar unreadable", "paper", env.PaperID, "error", err)
	}

	doc := &paper.Document{ID: env.PaperID, Text: text, Meta: meta}

	imagesDir := env.Home.PaperImagesDir(env.PaperID)
	entries, err := os.ReadDir(imagesDir)
	if err != nil {
		// No images were extracted for this paper.
		return doc, nil
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(imagesDir, entry.Name()))
		if err != nil {
			env.Logger.Warn("extracted image unreadable", "paper", env.PaperID, "image", entry.Name(), "error", err)
			continue
		}
		doc.Images = append(doc.Images, paper.Image{
			ID:       entry.Name(),
			MIMEType: mimeTypeForImage(entry.Name()),
			Data:     data,
		})
	}
	return doc, nil
}

// figureID maps a markdown reference to the image asset identifier the OCR
// stage stored it under: the base name of the reference target.
func figureID(ref string) string {
	target := refTarget(ref)
	if target == "" {
		return ref
	}
	return filepath.Base(target)
}

// refTarget extracts the image path from either reference syntax:
// ![alt](path "title") or ![[path]].
func refTarget(ref string) string {
	if strings.HasPrefix(ref, "![[") && strings.HasSuffix(ref, "]]") {
		return strings.TrimSpace(ref[3 : len(ref)-2])
	}
	open := strings.LastIndex(ref, "](")
	if open < 0 || !strings.HasSuffix(ref, ")") {
		return ""
	}
	target := ref[open+2 : len(ref)-1]
	// Drop an optional title: ![alt](path "title")
	if idx := strings.IndexAny(target, " \t"); idx >= 0 {
		target = target[:idx]
	}
	return strings.TrimSpace(target)
}

func mimeTypeForImage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

// figureContext assembles the text shown to the analysis model: the window
// around the reference itself plus windows around every cross-reference to
// the same figure number elsewhere in the paper ("Figure 3", "Fig. 3",
// "图 3").
func figureContext(document, ref string) string {
	var parts []string

	idx := strings.Index(document, ref)
	if idx >= 0 {
		parts = append(parts, window(document, idx, idx+len(ref)))
	}

	if m := figureNumberPattern.FindStringSubmatch(nearbyCaption(document, idx, ref)); m != nil {
		crossRef := regexp.MustCompile(`(?i)(?:figure|fig\.?|图)\s*` + regexp.QuoteMeta(m[1]) + `\b`)
		for _, loc := range crossRef.FindAllStringIndex(document, -1) {
			// The window around the reference itself is already included.
			if idx >= 0 && loc[0] >= idx-contextWindow && loc[1] <= idx+len(ref)+contextWindow {
				continue
			}
			parts = append(parts, window(document, loc[0], loc[1]))
		}
	}

	if len(parts) == 0 {
		return "(no surrounding text found)"
	}
	return strings.Join(parts, "\n...\n")
}

// nearbyCaption returns the text right around a reference where its caption
// usually sits, or the reference itself when its position is unknown.
func nearbyCaption(document string, idx int, ref string) string {
	if idx < 0 {
		return ref
	}
	return window(document, idx, idx+len(ref))
}

// window returns document[from:to] widened by contextWindow bytes each way,
// clipped to valid UTF-8 boundaries.
func window(document string, from, to int) string {
	start := from - contextWindow
	if start < 0 {
		start = 0
	}
	end := to + contextWindow
	if end > len(document) {
		end = len(document)
	}
	for start > 0 && start < len(document) && !utf8Start(document[start]) {
		start--
	}
	for end < len(document) && !utf8Start(document[end]) {
		end++
	}
	return strings.TrimSpace(document[start:end])
}

// utf8Start reports whether b can begin a UTF-8 encoded rune.
func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/papermill/papermill/internal/artifact"
	"github.com/papermill/papermill/internal/chunk"
	"github.com/papermill/papermill/internal/home"
	"github.com/papermill/papermill/internal/ledger"
	"github.com/papermill/papermill/internal/providers"
)

const testPaperID = "test-paper"

// newTestEnv builds an Env over a temp workspace with the given mock chat
// client registered as "mock".
func newTestEnv(t *testing.T, mock *providers.MockChatClient) *Env {
	t.Helper()

	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New: %v", err)
	}
	if err := h.EnsurePaperDir(testPaperID); err != nil {
		t.Fatalf("EnsurePaperDir: %v", err)
	}
	store, err := artifact.NewStore(h.PaperDir(testPaperID))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	reg := providers.NewRegistry()
	reg.SetLogger(slog.New(slog.DiscardHandler))
	if mock != nil {
		reg.RegisterChat("mock", mock)
	}

	return &Env{
		PaperID:  testPaperID,
		Registry: reg,
		Ledger:   ledger.New(nil),
		Store:    store,
		Home:     h,
		Pacer:    providers.NewRateLimiter(0),
		Options: Options{
			OCRProvider:    "mock-ocr",
			Translator:     "mock",
			Generator:      "mock",
			TargetLanguage: "Chinese",
			ContextChars:   200,
		},
		Logger: slog.New(slog.DiscardHandler),
	}
}

func writePages(t *testing.T, env *Env, name string, pages ...string) {
	t.Helper()
	if err := env.Store.WriteString(name, renderPages(pages)); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDefaultRegistryLevels(t *testing.T) {
	r := DefaultRegistry()
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	levels, err := r.Levels(r.Names())
	if err != nil {
		t.Fatalf("Levels: %v", err)
	}

	want := [][]string{{"ocr"}, {"translate"}, {"polish"}, {"sections"}, {"blog", "slides"}}
	if len(levels) != len(want) {
		t.Fatalf("got %d levels, want %d", len(levels), len(want))
	}
	for i, level := range levels {
		if len(level) != len(want[i]) {
			t.Fatalf("level %d has %d stages, want %d", i, len(level), len(want[i]))
		}
		for j, stage := range level {
			if stage.Name() != want[i][j] {
				t.Errorf("level %d stage %d = %q, want %q", i, j, stage.Name(), want[i][j])
			}
		}
	}

	// A subset ignores dependencies outside the selection.
	sub, err := r.Levels([]string{"blog"})
	if err != nil {
		t.Fatalf("Levels(blog): %v", err)
	}
	if len(sub) != 1 || len(sub[0]) != 1 || sub[0][0].Name() != "blog" {
		t.Errorf("subset levels wrong: %+v", sub)
	}

	if _, err := r.Levels([]string{"nope"}); !errors.Is(err, ErrStageNotFound) {
		t.Errorf("unknown stage error = %v, want ErrStageNotFound", err)
	}
}

func TestTranslateStagePreservesImagesAndContext(t *testing.T) {
	mock := providers.NewMockChatClient("mock", false)
	env := newTestEnv(t, mock)

	writePages(t, env, home.ArtifactOCR,
		"First page text.",
		"Before image ![fig](images/fig-0.png) after image.",
	)

	stage := &TranslateStage{}
	if stage.Complete(env) {
		t.Fatal("stage complete before running")
	}
	if err := stage.Run(context.Background(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !stage.Complete(env) {
		t.Error("stage not complete after running")
	}

	data, err := env.Store.Read(home.ArtifactTranslationRaw)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	out := string(data)

	pages := chunk.SplitPages(out)
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
	if !strings.Contains(pages[1], "![fig](images/fig-0.png)") {
		t.Errorf("image reference not preserved verbatim: %q", pages[1])
	}

	// Mock echoes the user prompt; page two's prompt must carry trailing
	// context from page one.
	if mock.Calls() != 3 { // page 1 text, page 2 pre-image text, post-image text
		t.Errorf("got %d provider calls, want 3", mock.Calls())
	}
	secondPrompt := lastUser(mock.Requests[1])
	if !strings.Contains(secondPrompt, "First page text.") {
		t.Errorf("second unit prompt missing trailing context: %q", secondPrompt)
	}

	snap := env.Ledger.Snapshot()
	if snap.ByFeature["translate"].Calls != 3 {
		t.Errorf("ledger calls = %d, want 3", snap.ByFeature["translate"].Calls)
	}
}

func TestTranslateStageResumesFromCheckpoint(t *testing.T) {
	mock := providers.NewMockChatClient("mock", false)
	env := newTestEnv(t, mock)

	writePages(t, env, home.ArtifactOCR, "page one", "page two", "page three")
	// One page already translated by a previous run.
	writePages(t, env, home.ArtifactTranslationRaw, "translated one")

	if err := (&TranslateStage{}).Run(context.Background(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mock.Calls() != 2 {
		t.Errorf("got %d provider calls, want 2 (resume skips completed pages)", mock.Calls())
	}

	data, _ := env.Store.Read(home.ArtifactTranslationRaw)
	pages := chunk.SplitPages(string(data))
	if len(pages) != 3 {
		t.Fatalf("got %d pages after resume, want 3", len(pages))
	}
	if !strings.Contains(pages[0], "translated one") {
		t.Errorf("resumed artifact lost earlier checkpoint: %q", pages[0])
	}
}

func TestTranslateStageKeepsCheckpointsOnFailure(t *testing.T) {
	mock := providers.NewMockChatClient("mock", false,
		providers.MockResponse{Content: "translated one"},
		providers.MockResponse{Err: errors.New("rate limited")},
	)
	env := newTestEnv(t, mock)

	writePages(t, env, home.ArtifactOCR, "page one", "page two")

	err := (&TranslateStage{}).Run(context.Background(), env)
	if err == nil {
		t.Fatal("expected stage failure")
	}
	if !strings.Contains(err.Error(), "unit 1") {
		t.Errorf("error does not identify the failed unit: %v", err)
	}

	data, readErr := env.Store.Read(home.ArtifactTranslationRaw)
	if readErr != nil {
		t.Fatalf("checkpoint missing after failure: %v", readErr)
	}
	if !strings.Contains(string(data), "translated one") {
		t.Errorf("checkpoint lost completed unit: %q", string(data))
	}
}

func TestTranslateStageSkipsEmptyAndImageOnlyPages(t *testing.T) {
	mock := providers.NewMockChatClient("mock", false)
	env := newTestEnv(t, mock)

	writePages(t, env, home.ArtifactOCR, "\n\n", "![[fig-1.png]]\n", "real text")

	if err := (&TranslateStage{}).Run(context.Background(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mock.Calls() != 1 {
		t.Errorf("got %d provider calls, want 1 (empty and image-only pages pass through)", mock.Calls())
	}

	data, _ := env.Store.Read(home.ArtifactTranslationRaw)
	if !strings.Contains(string(data), "![[fig-1.png]]") {
		t.Error("image-only page not passed through verbatim")
	}
}

func TestPolishStageFinalArtifactDropsPageMarkers(t *testing.T) {
	mock := providers.NewMockChatClient("mock", false,
		providers.MockResponse{Content: "polished one"},
		providers.MockResponse{Content: "polished two"},
	)
	env := newTestEnv(t, mock)
	writePages(t, env, home.ArtifactTranslationRaw, "raw one", "raw two")

	stage := &PolishStage{}
	if err := stage.Run(context.Background(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !stage.Complete(env) {
		t.Error("stage not complete after final render")
	}

	data, err := env.Store.Read(home.ArtifactTranslation)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if got, want := string(data), "polished one\n\npolished two\n"; got != want {
		t.Errorf("final translation = %q, want %q", got, want)
	}

	// A second run sees the finalized artifact and does nothing.
	calls := mock.Calls()
	if err := stage.Run(context.Background(), env); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if mock.Calls() != calls {
		t.Errorf("rerun made %d extra provider calls", mock.Calls()-calls)
	}
}

func TestSectionsStageWritesValidatedPlan(t *testing.T) {
	mock := providers.NewMockChatClient("mock", false, providers.MockResponse{
		Content: "```json\n{\"sections\":[{\"title\":\"Intro\",\"summary\":\"why\"},{\"title\":\"Method\"}]}\n```",
	})
	env := newTestEnv(t, mock)
	writePages(t, env, home.ArtifactTranslation, "translated paper")

	if err := (&SectionsStage{}).Run(context.Background(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}

	plan := loadPlan(env, "fallback")
	if len(plan.Sections) != 2 || plan.Sections[0].Title != "Intro" {
		t.Errorf("plan not persisted correctly: %+v", plan)
	}
}

func TestSectionsStageFailsOnInvalidPlan(t *testing.T) {
	mock := providers.NewMockChatClient("mock", false, providers.MockResponse{
		Content: "I could not produce JSON, sorry.",
	})
	env := newTestEnv(t, mock)
	writePages(t, env, home.ArtifactTranslation, "translated paper")

	if err := (&SectionsStage{}).Run(context.Background(), env); err == nil {
		t.Fatal("expected failure for unparseable plan")
	}
	if env.Store.Exists(home.ArtifactSections) {
		t.Error("invalid plan must not be persisted")
	}
}

func TestBlogStageDegradesToSingleSection(t *testing.T) {
	mock := providers.NewMockChatClient("mock", false, providers.MockResponse{
		Content: "## Overview\n\nEverything at once.",
	})
	env := newTestEnv(t, mock)
	writePages(t, env, home.ArtifactTranslation, "translated paper")
	// No sections.json on disk.

	stage := &BlogStage{}
	if err := stage.Run(context.Background(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mock.Calls() != 1 {
		t.Errorf("got %d provider calls, want 1 for the degraded single section", mock.Calls())
	}
	if !stage.Complete(env) {
		t.Error("stage not complete")
	}

	data, _ := env.Store.Read(home.ArtifactBlog)
	if strings.Contains(string(data), "<!-- SECTION") {
		t.Errorf("final blog still carries section markers: %q", string(data))
	}
}

func TestBlogStageAccumulatesAndRendersClean(t *testing.T) {
	mock := providers.NewMockChatClient("mock", false,
		providers.MockResponse{Content: "## One\n\nfirst section"},
		providers.MockResponse{Content: "## Two\n\nsecond section"},
	)
	env := newTestEnv(t, mock)
	writePages(t, env, home.ArtifactTranslation, "translated paper")
	mustWrite(t, env, home.ArtifactSections,
		`{"sections":[{"title":"One","summary":"a"},{"title":"Two","summary":"b"}]}`)

	if err := (&BlogStage{}).Run(context.Background(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Second call sees the first section as accumulated context.
	if mock.Calls() != 2 {
		t.Fatalf("got %d provider calls, want 2", mock.Calls())
	}
	if !strings.Contains(lastUser(mock.Requests[1]), "first section") {
		t.Error("second section prompt missing accumulated context")
	}

	data, _ := env.Store.Read(home.ArtifactBlog)
	out := string(data)
	if strings.Contains(out, "<!-- SECTION") {
		t.Errorf("final artifact carries markers: %q", out)
	}
	for _, want := range []string{"first section", "second section"} {
		if !strings.Contains(out, want) {
			t.Errorf("final blog missing %q", want)
		}
	}
}

func TestBlogStageResumesFromMarkers(t *testing.T) {
	mock := providers.NewMockChatClient("mock", false,
		providers.MockResponse{Content: "## Two\n\nsecond section"},
	)
	env := newTestEnv(t, mock)
	writePages(t, env, home.ArtifactTranslation, "translated paper")
	mustWrite(t, env, home.ArtifactSections,
		`{"sections":[{"title":"One"},{"title":"Two"}]}`)
	mustWrite(t, env, home.ArtifactBlog, joinSections([]string{"## One\n\nfirst section"}))

	stage := &BlogStage{}
	if stage.Complete(env) {
		t.Fatal("marker-bearing artifact must read as incomplete")
	}
	if err := stage.Run(context.Background(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mock.Calls() != 1 {
		t.Errorf("got %d provider calls, want 1 (first section resumed)", mock.Calls())
	}

	data, _ := env.Store.Read(home.ArtifactBlog)
	if !strings.Contains(string(data), "first section") {
		t.Error("resumed section lost")
	}
}

func TestSlidesStageBuildsDeck(t *testing.T) {
	mock := providers.NewMockChatClient("mock", false,
		providers.MockResponse{Content: "---\n\n# Motivation\n\n- why"},
		providers.MockResponse{Content: "---\n\n# Results\n\n- what"},
	)
	env := newTestEnv(t, mock)
	writePages(t, env, home.ArtifactTranslation, "translated paper")
	mustWrite(t, env, home.ArtifactSections,
		`{"sections":[{"title":"Motivation"},{"title":"Results"}]}`)

	stage := &SlidesStage{}
	if err := stage.Run(context.Background(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !stage.Complete(env) {
		t.Error("stage not complete")
	}

	data, _ := env.Store.Read(home.ArtifactSlides)
	out := string(data)
	if strings.Count(out, "# ") < 2 {
		t.Errorf("deck missing slides: %q", out)
	}
	if strings.Contains(out, "<!-- SECTION") {
		t.Error("final deck carries markers")
	}
}

func TestBlogStageNeverAnalyzesSkippedFigures(t *testing.T) {
	mock := providers.NewMockChatClient("mock", true,
		providers.MockResponse{Content: `{"figures":[{"id":"fig-0.png","tier":3},{"id":"fig-1.png","tier":3},{"id":"fig-2.png","tier":3}]}`},
		providers.MockResponse{Content: "## Overview\n\nno figures needed"},
	)
	env := newTestEnv(t, mock)
	writePages(t, env, home.ArtifactTranslation,
		"Intro ![a](images/fig-0.png) then ![b](images/fig-1.png) and ![c](images/fig-2.png).")
	writeFigures(t, env, "fig-0.png", "fig-1.png", "fig-2.png")
	mustWrite(t, env, home.ArtifactSections, `{"sections":[{"title":"Overview"}]}`)

	if err := (&BlogStage{}).Run(context.Background(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if mock.Calls() != 2 {
		t.Errorf("got %d provider calls, want 2 (one classification, one section)", mock.Calls())
	}
	if n := multimodalCalls(mock); n != 0 {
		t.Errorf("%d image calls for figures classified as skip, want 0", n)
	}
}

func TestBlogStageAnalyzesKeptFiguresOnly(t *testing.T) {
	mock := providers.NewMockChatClient("mock", true,
		providers.MockResponse{Content: `{"figures":[{"id":"fig-0.png","tier":1,"target_section":"Results"},{"id":"fig-1.png","tier":3},{"id":"fig-2.png","tier":2,"target_section":"Results"}]}`},
		providers.MockResponse{Content: `{"caption":"architecture overview","analysis":"shows the model layout"}`},
		providers.MockResponse{Content: `{"caption":"ablation results"}`},
		providers.MockResponse{Content: "## Results\n\nbody"},
	)
	env := newTestEnv(t, mock)
	writePages(t, env, home.ArtifactTranslation,
		"See ![a](images/fig-0.png), ![b](images/fig-1.png), ![c](images/fig-2.png).")
	writeFigures(t, env, "fig-0.png", "fig-1.png", "fig-2.png")
	mustWrite(t, env, home.ArtifactSections, `{"sections":[{"title":"Results"}]}`)

	if err := (&BlogStage{}).Run(context.Background(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if mock.Calls() != 4 {
		t.Fatalf("got %d provider calls, want 4 (classify, two analyses, one section)", mock.Calls())
	}
	if n := multimodalCalls(mock); n != 2 {
		t.Errorf("%d image calls, want 2 (tier 3 never billed an image call)", n)
	}

	sectionPrompt := lastUser(mock.Requests[3])
	for _, want := range []string{"architecture overview", "shows the model layout", "ablation results"} {
		if !strings.Contains(sectionPrompt, want) {
			t.Errorf("section prompt missing analysis %q", want)
		}
	}

	snap := env.Ledger.Snapshot()
	if snap.ByFeature["image_triage"].Calls != 1 {
		t.Errorf("image_triage calls = %d, want 1", snap.ByFeature["image_triage"].Calls)
	}
	if snap.ByFeature["image_analysis"].Calls != 2 {
		t.Errorf("image_analysis calls = %d, want 2", snap.ByFeature["image_analysis"].Calls)
	}
}

func TestFigureClassificationFailureDegradesToTierTwo(t *testing.T) {
	// A single prose response repeats for every call: classification and
	// both analyses fail to parse, so all figures fall back to tier 2 with
	// placeholder captions.
	mock := providers.NewMockChatClient("mock", true,
		providers.MockResponse{Content: "not json at all"},
	)
	env := newTestEnv(t, mock)
	writePages(t, env, home.ArtifactTranslation,
		"Figures ![a](images/fig-0.png) and ![b](images/fig-1.png) here.")
	writeFigures(t, env, "fig-0.png", "fig-1.png")
	mustWrite(t, env, home.ArtifactSections, `{"sections":[{"title":"Overview"}]}`)

	if err := (&BlogStage{}).Run(context.Background(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if mock.Calls() != 4 {
		t.Fatalf("got %d provider calls, want 4 (classify, two analyses, one section)", mock.Calls())
	}
	if n := multimodalCalls(mock); n != 2 {
		t.Errorf("%d image calls, want 2 (all figures defaulted to tier 2)", n)
	}
	if !strings.Contains(lastUser(mock.Requests[3]), "Figure from the paper") {
		t.Error("placeholder captions missing from section prompt")
	}
}

func TestRefTarget(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"![alt](images/fig1.png)", "images/fig1.png"},
		{`![alt](images/fig1.png "caption")`, "images/fig1.png"},
		{"![[fig2.png]]", "fig2.png"},
		{"![broken", ""},
	}
	for _, tt := range tests {
		if got := refTarget(tt.ref); got != tt.want {
			t.Errorf("refTarget(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestRunnerRecordsPerStageErrors(t *testing.T) {
	// Generator succeeds for blog/slides; translate fails because the ocr
	// artifact is missing. The runner must keep going and report both.
	mock := providers.NewMockChatClient("mock", false)
	env := newTestEnv(t, mock)
	writePages(t, env, home.ArtifactTranslation, "translated paper")
	mustWrite(t, env, home.ArtifactSections, `{"sections":[{"title":"Only"}]}`)

	runner := NewRunner(DefaultRegistry(), slog.New(slog.DiscardHandler))
	result, err := runner.Run(context.Background(), env, []string{"translate", "blog", "slides"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !result.Failed() {
		t.Fatal("expected failed result")
	}
	errs := result.Errs()
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "translate") {
		t.Errorf("unexpected error list: %v", errs)
	}

	byName := make(map[string]StageResult)
	for _, s := range result.Stages {
		byName[s.Stage] = s
	}
	if byName["translate"].Err == nil {
		t.Error("translate should have failed")
	}
	if byName["blog"].Err != nil || byName["slides"].Err != nil {
		t.Error("independent stages should have succeeded")
	}
}

func TestRunnerSkipsCompleteStages(t *testing.T) {
	mock := providers.NewMockChatClient("mock", false)
	env := newTestEnv(t, mock)
	writePages(t, env, home.ArtifactOCR, "single page")
	writePages(t, env, home.ArtifactTranslationRaw, "translated page")

	runner := NewRunner(DefaultRegistry(), slog.New(slog.DiscardHandler))
	result, err := runner.Run(context.Background(), env, []string{"translate"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Stages) != 1 || !result.Stages[0].Skipped {
		t.Errorf("complete stage not skipped: %+v", result.Stages)
	}
	if mock.Calls() != 0 {
		t.Errorf("skipped stage made %d provider calls", mock.Calls())
	}
}

func TestPaperIDFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/tmp/My Paper (v2).pdf", "my-paper-v2"},
		{"attention-is-all-you-need.pdf", "attention-is-all-you-need"},
		{"2304.01234.pdf", "2304.01234"},
		{"../weird///.pdf", ""},
	}
	for _, tt := range tests {
		if got := PaperIDFromPath(tt.path); got != tt.want {
			t.Errorf("PaperIDFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestTrailingContextRuneSafe(t *testing.T) {
	env := &Env{Options: Options{ContextChars: 3}}
	got := env.trailingContext("abc一二三四")
	if got != "二三四" {
		t.Errorf("trailingContext = %q, want %q", got, "二三四")
	}
	if env.trailingContext("ab") != "ab" {
		t.Error("short text must pass through unchanged")
	}
}

func lastUser(req *providers.ChatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return ""
}

func mustWrite(t *testing.T, env *Env, name, content string) {
	t.Helper()
	if err := env.Store.WriteString(name, content); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func writeFigures(t *testing.T, env *Env, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(env.Home.PaperImagePath(testPaperID, name), []byte("png bytes"), 0o644); err != nil {
			t.Fatalf("write image %s: %v", name, err)
		}
	}
}

// multimodalCalls counts the requests that carried image bytes.
func multimodalCalls(mock *providers.MockChatClient) int {
	n := 0
	for _, req := range mock.Requests {
		for _, msg := range req.Messages {
			if len(msg.Images) > 0 {
				n++
				break
			}
		}
	}
	return n
}

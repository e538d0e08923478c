package triage

import (
	"bytes"
	_ "embed"
	"text/template"

	"github.com/papermill/papermill/internal/prompts"
)

//go:embed system.tmpl
var systemPromptTmpl string

//go:embed user.tmpl
var userPromptTmpl string

//go:embed analysis_system.tmpl
var analysisSystemPromptTmpl string

//go:embed analysis_user.tmpl
var analysisUserPromptTmpl string

var (
	systemTemplate         = template.Must(template.New("system").Parse(systemPromptTmpl))
	userTemplate           = template.Must(template.New("user").Parse(userPromptTmpl))
	analysisSystemTemplate = template.Must(template.New("analysis_system").Parse(analysisSystemPromptTmpl))
	analysisUserTemplate   = template.Must(template.New("analysis_user").Parse(analysisUserPromptTmpl))
)

// SystemPrompt builds the system prompt for the batch classification call.
func SystemPrompt() string {
	var buf bytes.Buffer
	if err := systemTemplate.Execute(&buf, nil); err != nil {
		return systemPromptTmpl
	}
	return buf.String()
}

// UserPromptData carries the text-only inputs of the batch classification
// call: the paper's abstract, the planned section titles (one per line), and
// the figure identifiers to classify (one per line).
type UserPromptData struct {
	Abstract string
	Sections string
	Figures  string
}

// UserPrompt builds the user prompt for the batch classification call.
func UserPrompt(data UserPromptData) string {
	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, data); err != nil {
		return userPromptTmpl
	}
	return buf.String()
}

// AnalysisSystemPrompt builds the system prompt for deep-analyzing one
// figure.
func AnalysisSystemPrompt(targetLanguage string) string {
	var buf bytes.Buffer
	data := struct{ TargetLanguage string }{TargetLanguage: targetLanguage}
	if err := analysisSystemTemplate.Execute(&buf, data); err != nil {
		return analysisSystemPromptTmpl
	}
	return buf.String()
}

// AnalysisUserPrompt builds the user prompt for deep-analyzing one figure.
func AnalysisUserPrompt(imageRef, surroundingText string) string {
	var buf bytes.Buffer
	data := struct {
		ImageRef        string
		SurroundingText string
	}{ImageRef: imageRef, SurroundingText: surroundingText}
	if err := analysisUserTemplate.Execute(&buf, data); err != nil {
		return analysisUserPromptTmpl
	}
	return buf.String()
}

// Prompt keys
const (
	SystemPromptKey         = "stages.triage.system"
	UserPromptKey           = "stages.triage.user"
	AnalysisSystemPromptKey = "stages.triage.analysis_system"
	AnalysisUserPromptKey   = "stages.triage.analysis_user"
)

// RegisterPrompts registers the figure triage prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPromptTmpl,
		Description: "Figure triage system prompt - classifies all figures in one batch call",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Figure triage user prompt template",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         AnalysisSystemPromptKey,
		Text:        analysisSystemPromptTmpl,
		Description: "Figure deep-analysis system prompt - caption and analysis for one figure",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         AnalysisUserPromptKey,
		Text:        analysisUserPromptTmpl,
		Description: "Figure deep-analysis user prompt template",
	})
}

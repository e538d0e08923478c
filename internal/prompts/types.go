// Package prompts provides prompt management with embedded defaults.
//
// Embedded .tmpl files in code are the source of truth. Each pipeline stage
// owns a subpackage (translate, polish, sections, blog, slides, triage) that
// embeds its templates and registers them with the Resolver at startup. The
// Resolver gives the rest of the program a single place to look up prompt
// text by hierarchical key (e.g. "stages.translate.system").
package prompts

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   // Hierarchical key: stages.translate.system
	Text        string   // The prompt text (Go template)
	Description string   // Human-readable description
	Variables   []string // Extracted template variables
	Hash        string   // SHA256 hash of the text for change detection
}

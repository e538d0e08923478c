package triage

import (
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/papermill/papermill/internal/providers"
)

// Tier values assigned by figure triage.
const (
	TierEssential = 1
	TierUseful    = 2
	TierSkip      = 3
)

// ClassificationSchema validates the batch triage response: one assignment
// per listed figure.
var ClassificationSchema *jsonschema.Schema = providers.MustCompileSchema("triage_classification.json", `{
	"type": "object",
	"properties": {
		"figures": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"id": {"type": "string"},
					"tier": {"type": "integer", "minimum": 1, "maximum": 3},
					"target_section": {"type": "string"}
				},
				"required": ["id", "tier"],
				"additionalProperties": false
			}
		}
	},
	"required": ["figures"],
	"additionalProperties": false
}`)

// Assignment is one figure's triage result from the batch call.
type Assignment struct {
	ID            string `json:"id"`
	Tier          int    `json:"tier"`
	TargetSection string `json:"target_section,omitempty"`
}

// Classification is the parsed batch triage response.
type Classification struct {
	Figures []Assignment `json:"figures"`
}

// AnalysisSchema validates the deep-analysis response for one figure.
var AnalysisSchema *jsonschema.Schema = providers.MustCompileSchema("triage_analysis.json", `{
	"type": "object",
	"properties": {
		"caption": {"type": "string"},
		"analysis": {"type": "string"}
	},
	"required": ["caption"],
	"additionalProperties": false
}`)

// Analysis is the parsed deep-analysis result for one figure.
type Analysis struct {
	Caption  string `json:"caption"`
	Analysis string `json:"analysis,omitempty"`
}

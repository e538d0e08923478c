package sections

import (
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/papermill/papermill/internal/providers"
)

// PlanSchema validates the section plan returned by the model.
var PlanSchema *jsonschema.Schema = providers.MustCompileSchema("section_plan.json", `{
	"type": "object",
	"properties": {
		"sections": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"properties": {
					"title": {"type": "string", "minLength": 1},
					"summary": {"type": "string"}
				},
				"required": ["title"],
				"additionalProperties": false
			}
		}
	},
	"required": ["sections"],
	"additionalProperties": false
}`)

// Section is one planned blog section.
type Section struct {
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
}

// Plan is the parsed result from the section planning call.
type Plan struct {
	Sections []Section `json:"sections"`
}

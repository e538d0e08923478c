package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// StripCodeFence removes one enclosing markdown code fence from model
// output. Models habitually wrap replies in ```lang fences even when asked
// not to; the fence is a formatting quirk, not content.
func StripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return s
	}
	last := strings.TrimSpace(lines[len(lines)-1])
	if last != "```" {
		return s
	}
	return strings.Join(lines[1:len(lines)-1], "\n")
}

// ExtractJSON pulls the JSON payload out of model output: strips a code
// fence if present, then falls back to the first '{' or '[' when the model
// prefixed the payload with prose.
func ExtractJSON(content string) (string, error) {
	content = strings.TrimSpace(StripCodeFence(content))
	if content == "" {
		return "", fmt.Errorf("empty model output")
	}
	if content[0] == '{' || content[0] == '[' {
		return content, nil
	}

	objIdx := strings.IndexAny(content, "{[")
	if objIdx < 0 {
		return "", fmt.Errorf("no JSON found in model output")
	}
	closer := byte('}')
	if content[objIdx] == '[' {
		closer = ']'
	}
	endIdx := strings.LastIndexByte(content, closer)
	if endIdx <= objIdx {
		return "", fmt.Errorf("unterminated JSON in model output")
	}
	return content[objIdx : endIdx+1], nil
}

// DecodeModelJSON parses fence-wrapped or prose-wrapped JSON from model
// output into out, validating against schema when one is given.
func DecodeModelJSON(content string, schema *jsonschema.Schema, out any) error {
	payload, err := ExtractJSON(content)
	if err != nil {
		return err
	}

	if schema != nil {
		var v any
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return fmt.Errorf("model output is not valid JSON: %w", err)
		}
		if err := schema.Validate(v); err != nil {
			return fmt.Errorf("model output failed schema validation: %w", err)
		}
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("failed to decode model output: %w", err)
	}
	return nil
}

// MustCompileSchema compiles a JSON schema literal at init time.
func MustCompileSchema(name, schema string) *jsonschema.Schema {
	return jsonschema.MustCompileString(name, schema)
}

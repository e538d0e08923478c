// Package paper holds the document model flowing through the pipeline: the
// markdown text produced by OCR, the images extracted alongside it, and the
// optional metadata sidecar.
package paper

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Image is one binary asset extracted from the source document.
type Image struct {
	ID       string
	MIMEType string
	Data     []byte
}

// Document is one version of a paper's text plus its image assets. Stages
// never mutate a Document in place; each stage reads one version and writes
// a new named artifact.
type Document struct {
	ID     string
	Text   string
	Images []Image
	Meta   *Metadata
}

// Image returns the image with the given ID, or nil.
func (d *Document) Image(id string) *Image {
	for i := range d.Images {
		if d.Images[i].ID == id {
			return &d.Images[i]
		}
	}
	return nil
}

// Abstract returns the opening slice of the document text used to give
// classification calls context without shipping the whole paper.
func (d *Document) Abstract(maxChars int) string {
	text := strings.TrimSpace(d.Text)
	if len(text) <= maxChars {
		return text
	}
	cut := text[:maxChars]
	// Cut on a line boundary when one is reasonably close.
	if idx := strings.LastIndexByte(cut, '\n'); idx > maxChars/2 {
		cut = cut[:idx]
	}
	return cut
}

// Metadata is the sidecar every generation stage reads for prompt context
// when present. It is never required.
type Metadata struct {
	Title    string   `json:"title,omitempty"`
	Authors  []string `json:"authors,omitempty"`
	SourceID string   `json:"source_id,omitempty"` // e.g. arXiv identifier
	Tags     []string `json:"tags,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
}

// LoadMetadata reads the sidecar at path. A missing file is not an error;
// it returns (nil, nil).
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read metadata sidecar: %w", err)
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata sidecar: %w", err)
	}
	return &m, nil
}

// Encode renders the sidecar JSON.
func (m *Metadata) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return append(data, '\n'), nil
}

// PromptContext renders the metadata as a short prompt preamble, or an
// empty string when there is nothing useful to say.
func (m *Metadata) PromptContext() string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	if m.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", m.Title)
	}
	if len(m.Authors) > 0 {
		fmt.Fprintf(&b, "Authors: %s\n", strings.Join(m.Authors, ", "))
	}
	if m.SourceID != "" {
		fmt.Fprintf(&b, "Source: %s\n", m.SourceID)
	}
	if len(m.Tags) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(m.Tags, ", "))
	}
	return b.String()
}

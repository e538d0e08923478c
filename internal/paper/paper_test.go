package paper

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDocumentImage(t *testing.T) {
	doc := &Document{
		Images: []Image{
			{ID: "img_0.png", MIMEType: "image/png"},
			{ID: "img_1.jpeg", MIMEType: "image/jpeg"},
		},
	}

	if img := doc.Image("img_1.jpeg"); img == nil || img.MIMEType != "image/jpeg" {
		t.Errorf("Image(img_1.jpeg) = %+v", img)
	}
	if img := doc.Image("missing"); img != nil {
		t.Errorf("Image(missing) = %+v, want nil", img)
	}
}

func TestDocumentAbstract(t *testing.T) {
	t.Run("short text returned whole", func(t *testing.T) {
		doc := &Document{Text: "  short abstract  "}
		if got := doc.Abstract(100); got != "short abstract" {
			t.Errorf("Abstract() = %q", got)
		}
	})

	t.Run("long text cut on line boundary", func(t *testing.T) {
		doc := &Document{Text: strings.Repeat("line of text\n", 100)}
		got := doc.Abstract(200)
		if len(got) > 200 {
			t.Errorf("abstract longer than limit: %d", len(got))
		}
		if strings.HasSuffix(got, "line of te") {
			t.Errorf("abstract cut mid-line: %q", got[len(got)-20:])
		}
	})
}

func TestLoadMetadata(t *testing.T) {
	t.Run("missing file is not an error", func(t *testing.T) {
		m, err := LoadMetadata(filepath.Join(t.TempDir(), "metadata.json"))
		if err != nil {
			t.Fatalf("LoadMetadata() error = %v", err)
		}
		if m != nil {
			t.Errorf("expected nil metadata, got %+v", m)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "metadata.json")
		src := &Metadata{
			Title:    "Attention Is All You Need",
			Authors:  []string{"Vaswani", "Shazeer"},
			SourceID: "1706.03762",
			Tags:     []string{"cs.CL"},
		}
		data, err := src.Encode()
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		got, err := LoadMetadata(path)
		if err != nil {
			t.Fatalf("LoadMetadata() error = %v", err)
		}
		if got.Title != src.Title || got.SourceID != src.SourceID || len(got.Authors) != 2 {
			t.Errorf("metadata changed in round trip: %+v", got)
		}
	})

	t.Run("corrupt sidecar is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "metadata.json")
		os.WriteFile(path, []byte("not json"), 0o644)
		if _, err := LoadMetadata(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestMetadataPromptContext(t *testing.T) {
	var m *Metadata
	if got := m.PromptContext(); got != "" {
		t.Errorf("nil metadata PromptContext() = %q", got)
	}

	m = &Metadata{Title: "T", Authors: []string{"A", "B"}, SourceID: "2401.00001"}
	got := m.PromptContext()
	for _, want := range []string{"Title: T", "Authors: A, B", "Source: 2401.00001"} {
		if !strings.Contains(got, want) {
			t.Errorf("PromptContext() missing %q:\n%s", want, got)
		}
	}
}

package chunk

import (
	"strings"
	"testing"
)

func TestSplitPages(t *testing.T) {
	t.Run("no markers is one page", func(t *testing.T) {
		doc := "just some text\nwith lines"
		pages := SplitPages(doc)
		if len(pages) != 1 {
			t.Fatalf("expected 1 page, got %d", len(pages))
		}
		if pages[0] != doc {
			t.Errorf("page content changed: %q", pages[0])
		}
	})

	t.Run("two pages", func(t *testing.T) {
		doc := "page one text\n" + PageMarker(1) + "\npage two text"
		pages := SplitPages(doc)
		if len(pages) != 2 {
			t.Fatalf("expected 2 pages, got %d", len(pages))
		}
		if !strings.Contains(pages[0], "page one") || !strings.Contains(pages[1], "page two") {
			t.Errorf("pages split in wrong place: %q / %q", pages[0], pages[1])
		}
	})

	t.Run("leading marker drops empty first page", func(t *testing.T) {
		doc := PageMarker(0) + "\nfirst\n" + PageMarker(1) + "\nsecond"
		pages := SplitPages(doc)
		if len(pages) != 2 {
			t.Fatalf("expected 2 pages, got %d: %q", len(pages), pages)
		}
	})

	t.Run("whitespace before first marker is kept", func(t *testing.T) {
		doc := "\n\n" + PageMarker(0) + "\nfirst"
		pages := SplitPages(doc)
		if len(pages) != 2 {
			t.Fatalf("expected 2 pages, got %d: %q", len(pages), pages)
		}
		if pages[0] != "\n\n" {
			t.Errorf("leading whitespace page lost: %q", pages[0])
		}
	})

	t.Run("empty document", func(t *testing.T) {
		pages := SplitPages("")
		if len(pages) != 1 || pages[0] != "" {
			t.Errorf("expected single empty page, got %q", pages)
		}
	})
}

func TestHasPageMarkers(t *testing.T) {
	if !HasPageMarkers(PageMarker(0) + "\ntext") {
		t.Error("marker not detected")
	}
	if HasPageMarkers("plain text\nno markers") {
		t.Error("false positive on plain text")
	}
}

func TestSplitImages(t *testing.T) {
	t.Run("single reference mid paragraph", func(t *testing.T) {
		page := "Before. ![fig](images/fig1.png) After."
		chunks := SplitImages(page)
		if len(chunks) != 3 {
			t.Fatalf("expected 3 chunks, got %d: %+v", len(chunks), chunks)
		}
		if chunks[0].Text != "Before. " || chunks[0].IsImage {
			t.Errorf("chunk 0 = %+v", chunks[0])
		}
		if chunks[1].Text != "![fig](images/fig1.png)" || !chunks[1].IsImage {
			t.Errorf("chunk 1 = %+v", chunks[1])
		}
		if chunks[2].Text != " After." || chunks[2].IsImage {
			t.Errorf("chunk 2 = %+v", chunks[2])
		}
	})

	t.Run("wiki style reference", func(t *testing.T) {
		chunks := SplitImages("see ![[img_0.png]] here")
		if len(chunks) != 3 {
			t.Fatalf("expected 3 chunks, got %d", len(chunks))
		}
		if chunks[1].Text != "![[img_0.png]]" || !chunks[1].IsImage {
			t.Errorf("chunk 1 = %+v", chunks[1])
		}
	})

	t.Run("adjacent references", func(t *testing.T) {
		chunks := SplitImages("![a](a.png)![b](b.png)")
		if len(chunks) != 2 {
			t.Fatalf("expected 2 chunks, got %d", len(chunks))
		}
		for i, c := range chunks {
			if !c.IsImage {
				t.Errorf("chunk %d not marked as image: %+v", i, c)
			}
		}
	})

	t.Run("no references", func(t *testing.T) {
		chunks := SplitImages("plain text only")
		if len(chunks) != 1 || chunks[0].IsImage {
			t.Errorf("unexpected chunks: %+v", chunks)
		}
	})

	t.Run("empty page passes through", func(t *testing.T) {
		chunks := SplitImages("")
		if len(chunks) != 1 || chunks[0].Text != "" {
			t.Errorf("unexpected chunks: %+v", chunks)
		}
	})
}

func TestReconstruction(t *testing.T) {
	// Joining chunks must reproduce the input byte-for-byte, including
	// whitespace and documents ending mid-reference.
	inputs := []string{
		"",
		"no images at all",
		"Before. ![fig](images/fig1.png) After.",
		"![lead](a.png) then text",
		"text then trailing ![end](z.png)",
		"broken trailing ![fig](incomplete",
		"unicode 图一 ![[图.png]] 之后",
		"  leading and trailing whitespace  \n\n",
		"double ![[one.png]]![two](2.png) refs",
	}
	for _, in := range inputs {
		got := Join(SplitImages(in))
		if got != in {
			t.Errorf("reconstruction mismatch:\n in: %q\nout: %q", in, got)
		}
	}
}

func TestImageChunkAtomicity(t *testing.T) {
	page := "a ![x](1.png) b ![[2.png]] c"
	for _, c := range SplitImages(page) {
		if c.IsImage {
			continue
		}
		if strings.Contains(c.Text, "![") && strings.ContainsAny(c.Text, ")]") {
			// A text chunk containing a complete reference means the
			// boundary fell inside it somewhere else.
			if len(ImageRefs(c.Text)) > 0 {
				t.Errorf("text chunk contains an image reference: %q", c.Text)
			}
		}
	}
}

func TestImageRefs(t *testing.T) {
	refs := ImageRefs("x ![a](a.png) y ![[b.png]] z")
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[0] != "![a](a.png)" || refs[1] != "![[b.png]]" {
		t.Errorf("unexpected refs: %v", refs)
	}
}

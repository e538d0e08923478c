// Package chunk splits OCR markdown into the units the pipeline sends to
// providers: pages delimited by an explicit marker, and within a page,
// alternating text and image-reference runs. Splitting is lossless: joining
// the chunks of a page reproduces the page byte-for-byte.
package chunk

import (
	"fmt"
	"regexp"
	"strings"
)

// PageMarkerFormat is the marker the OCR stage emits between pages. Page
// indices are zero-based.
const PageMarkerFormat = "<!-- PAGE %d -->"

var (
	pageMarkerPattern = regexp.MustCompile(`<!-- PAGE \d+ -->`)

	// Two embedded-image syntaxes: standard markdown ![alt](path) and
	// wiki-style ![[path]]. The wiki form must be tried first so that
	// "![[x]]" is not half-matched by the standard form's alt text.
	imagePattern = regexp.MustCompile(`!\[\[[^\]]*\]\]|!\[[^\]]*\]\([^)]*\)`)
)

// Chunk is one run of page content.
type Chunk struct {
	Text    string
	IsImage bool // true when Text is exactly one image reference
}

// PageMarker renders the boundary marker for a page index.
func PageMarker(index int) string {
	return fmt.Sprintf(PageMarkerFormat, index)
}

// SplitPages splits a document on page-boundary markers. The markers
// themselves are consumed. A document with no markers is a single page.
func SplitPages(doc string) []string {
	if !pageMarkerPattern.MatchString(doc) {
		return []string{doc}
	}
	pages := pageMarkerPattern.Split(doc, -1)
	// A marker at the very start produces a leading zero-byte page with no
	// content of its own; everything else, whitespace included, is preserved
	// verbatim.
	if len(pages) > 1 && pages[0] == "" {
		pages = pages[1:]
	}
	return pages
}

// HasPageMarkers reports whether doc still carries page-boundary markers.
func HasPageMarkers(doc string) bool {
	return pageMarkerPattern.MatchString(doc)
}

// SplitImages splits page text into alternating text and image-reference
// runs. Image references are atomic: no boundary ever falls inside one.
// Joining the returned chunks in order reproduces the input exactly.
func SplitImages(page string) []Chunk {
	locs := imagePattern.FindAllStringIndex(page, -1)
	if len(locs) == 0 {
		return []Chunk{{Text: page}}
	}

	var chunks []Chunk
	pos := 0
	for _, loc := range locs {
		if loc[0] > pos {
			chunks = append(chunks, Chunk{Text: page[pos:loc[0]]})
		}
		chunks = append(chunks, Chunk{Text: page[loc[0]:loc[1]], IsImage: true})
		pos = loc[1]
	}
	if pos < len(page) {
		chunks = append(chunks, Chunk{Text: page[pos:]})
	}
	return chunks
}

// Join reassembles chunks into page text.
func Join(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}

// ImageRefs returns the image references found in text, in order.
func ImageRefs(text string) []string {
	return imagePattern.FindAllString(text, -1)
}

// Package pdf validates source PDFs before they are shipped to the OCR
// provider.
package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Info describes a source PDF.
type Info struct {
	Path      string
	PageCount int
	SizeBytes int64
}

// Inspect checks that path is a readable PDF and returns its page count.
// A broken or non-PDF file is rejected here, before any provider cost is
// incurred.
func Inspect(path string) (*Info, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return nil, fmt.Errorf("not a PDF file: %s", path)
	}

	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	pageCount, err := api.PageCount(f, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF structure in %s: %w", path, err)
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("PDF has no pages: %s", path)
	}

	return &Info{
		Path:      path,
		PageCount: pageCount,
		SizeBytes: st.Size(),
	}, nil
}

// Read loads the document bytes after a structural sanity check on the
// header.
func Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("file does not look like a PDF: %s", path)
	}
	return data, nil
}

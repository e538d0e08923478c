// Package home manages the papermill workspace directory layout: per-paper
// artifact directories, extracted image storage, and the config file location.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the papermill home directory.
	DefaultDirName = ".papermill"

	// PapersDirName is the subdirectory holding per-paper artifacts.
	PapersDirName = "papers"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Artifact filenames within a paper directory. Each pipeline stage owns
// exactly one; downstream stages look upstream artifacts up in priority
// order.
const (
	ArtifactOCR            = "ocr.md"
	ArtifactTranslationRaw = "translation-raw.md"
	ArtifactTranslation    = "translation.md"
	ArtifactSections       = "sections.json"
	ArtifactBlog           = "blog.md"
	ArtifactSlides         = "slides.md"
	MetadataFileName       = "metadata.json"
	UsageFileName          = "usage.json"
	ImagesDirName          = "images"
)

// Dir represents the papermill home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.papermill).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}
	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// PapersPath returns the directory holding all paper artifact directories.
func (d *Dir) PapersPath() string {
	return filepath.Join(d.path, PapersDirName)
}

// PaperDir returns the artifact directory for one paper.
func (d *Dir) PaperDir(paperID string) string {
	return filepath.Join(d.PapersPath(), paperID)
}

// PaperImagesDir returns the extracted-image directory for one paper.
func (d *Dir) PaperImagesDir(paperID string) string {
	return filepath.Join(d.PaperDir(paperID), ImagesDirName)
}

// PaperImagePath returns the path of one extracted image.
func (d *Dir) PaperImagePath(paperID, imageID string) string {
	return filepath.Join(d.PaperImagesDir(paperID), imageID)
}

// MetadataPath returns the metadata sidecar path for one paper.
func (d *Dir) MetadataPath(paperID string) string {
	return filepath.Join(d.PaperDir(paperID), MetadataFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.PapersPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create papers directory: %w", err)
	}
	return nil
}

// EnsurePaperDir creates the artifact and image directories for a paper.
func (d *Dir) EnsurePaperDir(paperID string) error {
	if err := os.MkdirAll(d.PaperImagesDir(paperID), 0o755); err != nil {
		return fmt.Errorf("failed to create paper directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// TranslationPriority is the lookup order for the best available translated
// text of a paper: the polished translation, then the raw translation, then
// the untranslated OCR output.
func TranslationPriority() []string {
	return []string{ArtifactTranslation, ArtifactTranslationRaw, ArtifactOCR}
}

package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-papermill")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-papermill" {
			t.Errorf("expected path /tmp/test-papermill, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-papermill")

	t.Run("PapersPath", func(t *testing.T) {
		expected := "/tmp/test-papermill/papers"
		if dir.PapersPath() != expected {
			t.Errorf("expected %s, got %s", expected, dir.PapersPath())
		}
	})

	t.Run("ConfigPath", func(t *testing.T) {
		expected := "/tmp/test-papermill/config.yaml"
		if dir.ConfigPath() != expected {
			t.Errorf("expected %s, got %s", expected, dir.ConfigPath())
		}
	})

	t.Run("PaperDir", func(t *testing.T) {
		expected := "/tmp/test-papermill/papers/2401.12345"
		if dir.PaperDir("2401.12345") != expected {
			t.Errorf("expected %s, got %s", expected, dir.PaperDir("2401.12345"))
		}
	})

	t.Run("PaperImagePath", func(t *testing.T) {
		expected := "/tmp/test-papermill/papers/p1/images/img_0.png"
		if got := dir.PaperImagePath("p1", "img_0.png"); got != expected {
			t.Errorf("expected %s, got %s", expected, got)
		}
	})

	t.Run("MetadataPath", func(t *testing.T) {
		expected := "/tmp/test-papermill/papers/p1/metadata.json"
		if got := dir.MetadataPath("p1"); got != expected {
			t.Errorf("expected %s, got %s", expected, got)
		}
	})
}

func TestDir_EnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	pmDir := filepath.Join(tmpDir, "papermill-test")

	dir, err := New(pmDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir.Exists() {
		t.Error("directory should not exist before EnsureExists")
	}

	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	if !dir.Exists() {
		t.Error("directory should exist after EnsureExists")
	}

	if _, err := os.Stat(dir.PapersPath()); os.IsNotExist(err) {
		t.Error("papers directory should exist after EnsureExists")
	}
}

func TestDir_EnsurePaperDir(t *testing.T) {
	dir, _ := New(t.TempDir())

	if err := dir.EnsurePaperDir("2401.12345"); err != nil {
		t.Fatalf("EnsurePaperDir failed: %v", err)
	}
	if _, err := os.Stat(dir.PaperImagesDir("2401.12345")); os.IsNotExist(err) {
		t.Error("images directory should exist after EnsurePaperDir")
	}
}

func TestDir_ConfigExists(t *testing.T) {
	tmpDir := t.TempDir()
	dir, _ := New(tmpDir)

	if dir.ConfigExists() {
		t.Error("config should not exist initially")
	}

	configPath := dir.ConfigPath()
	if err := os.WriteFile(configPath, []byte("test: true\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if !dir.ConfigExists() {
		t.Error("config should exist after creation")
	}
}

func TestTranslationPriority(t *testing.T) {
	p := TranslationPriority()
	if len(p) != 3 || p[0] != ArtifactTranslation || p[2] != ArtifactOCR {
		t.Errorf("unexpected priority order: %v", p)
	}
}

package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGlobalTreesimPath(t *testing.T) {
	got, err := GlobalTreesimPath()
	if err != nil {
		t.Fatalf("GlobalTreesimPath() error = %v", err)
	}
	if !strings.HasSuffix(got, ".treesim") {
		t.Errorf("GlobalTreesimPath() = %v, should end with .treesim", got)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("GlobalTreesimPath() = %v, should be absolute path", got)
	}
}

func TestDefaultDBPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("DefaultDBPath() error = %v", err)
	}
	if want := filepath.Join(home, ".treesim", "runs.db"); got != want {
		t.Errorf("DefaultDBPath() = %v, want %v", got, want)
	}
}

func TestEnsureGlobalTreesimDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := EnsureGlobalTreesimDir(); err != nil {
		t.Fatalf("EnsureGlobalTreesimDir() error = %v", err)
	}
	info, err := os.Stat(filepath.Join(home, ".treesim"))
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error(".treesim is not a directory")
	}

	// Calling again is fine.
	if err := EnsureGlobalTreesimDir(); err != nil {
		t.Errorf("second EnsureGlobalTreesimDir() error = %v", err)
	}
}

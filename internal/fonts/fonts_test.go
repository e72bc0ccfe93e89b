package fonts

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func TestFaceFallsBackToEmbedded(t *testing.T) {
	lib, err := NewLibrary("")
	if err != nil {
		t.Fatalf("NewLibrary failed: %v", err)
	}

	face := lib.Face("Times New Roman", "normal", 36)
	if face == nil {
		t.Fatal("Face returned nil for unknown family")
	}
}

func TestFaceBoldDiffersFromRegular(t *testing.T) {
	lib, err := NewLibrary("")
	if err != nil {
		t.Fatalf("NewLibrary failed: %v", err)
	}

	regular := lib.Face("Arial", "normal", 24)
	bold := lib.Face("Arial", "bold", 24)
	if regular == bold {
		t.Error("bold and regular resolved to the same face")
	}

	// CSS numeric weight maps to bold too.
	if lib.Face("Arial", "700", 24) != bold {
		t.Error("weight 700 did not resolve to the bold face")
	}
}

func TestFaceCaching(t *testing.T) {
	lib, err := NewLibrary("")
	if err != nil {
		t.Fatalf("NewLibrary failed: %v", err)
	}

	a := lib.Face("Arial", "normal", 24)
	b := lib.Face("arial", "normal", 24)
	if a != b {
		t.Error("family lookup is not case-insensitive for the face cache")
	}
}

func TestFaceDiskOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "custom.ttf"), goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}

	lib, err := NewLibrary(dir)
	if err != nil {
		t.Fatalf("NewLibrary failed: %v", err)
	}

	if face := lib.Face("Custom", "normal", 18); face == nil {
		t.Fatal("Face returned nil for on-disk font")
	}
}

func TestFaceZeroSize(t *testing.T) {
	lib, err := NewLibrary("")
	if err != nil {
		t.Fatalf("NewLibrary failed: %v", err)
	}
	if face := lib.Face("Arial", "normal", 0); face == nil {
		t.Fatal("Face returned nil for zero size")
	}
}

// Package fonts resolves template font requests to drawable faces.
package fonts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Library loads TTF files from a fonts directory and falls back to the
// embedded Go fonts, so rendering stays deterministic on hosts without any
// fonts installed. Faces are cached per (family, weight, size).
type Library struct {
	dir string

	mu       sync.Mutex
	parsed   map[string]*truetype.Font
	faces    map[faceKey]font.Face
	regular  *truetype.Font
	bold     *truetype.Font
}

type faceKey struct {
	family string
	bold   bool
	size   float64
}

// NewLibrary creates a Library probing dir for TTF files. dir may be empty.
func NewLibrary(dir string) (*Library, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded regular font: %w", err)
	}
	boldFont, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded bold font: %w", err)
	}
	return &Library{
		dir:     dir,
		parsed:  make(map[string]*truetype.Font),
		faces:   make(map[faceKey]font.Face),
		regular: regular,
		bold:    boldFont,
	}, nil
}

// Face returns a face for the requested family, weight and pixel size. Weight
// accepts "bold" and the CSS numeric "700"; anything else is regular. Unknown
// families resolve to the embedded fallback.
func (l *Library) Face(family, weight string, size float64) font.Face {
	if size <= 0 {
		size = 12
	}
	isBold := weight == "bold" || weight == "700"

	key := faceKey{family: strings.ToLower(family), bold: isBold, size: size}

	l.mu.Lock()
	defer l.mu.Unlock()

	if face, ok := l.faces[key]; ok {
		return face
	}

	f := l.lookupLocked(family, isBold)
	face := truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72})
	l.faces[key] = face
	return face
}

// lookupLocked resolves the font file for a family, e.g. "Arial" bold probes
// <dir>/arialbd.ttf then <dir>/arial.ttf before the embedded fallback.
func (l *Library) lookupLocked(family string, isBold bool) *truetype.Font {
	if l.dir != "" && family != "" {
		slug := familySlug(family)
		candidates := []string{slug + ".ttf"}
		if isBold {
			candidates = []string{slug + "bd.ttf", slug + ".ttf"}
		}
		for _, name := range candidates {
			path := filepath.Join(l.dir, name)
			if f := l.parseFileLocked(path); f != nil {
				return f
			}
		}
	}
	if isBold {
		return l.bold
	}
	return l.regular
}

func (l *Library) parseFileLocked(path string) *truetype.Font {
	if f, ok := l.parsed[path]; ok {
		return f
	}
	if _, err := os.Stat(path); err != nil {
		l.parsed[path] = nil
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		l.parsed[path] = nil
		return nil
	}
	f, err := truetype.Parse(data)
	if err != nil {
		l.parsed[path] = nil
		return nil
	}
	l.parsed[path] = f
	return f
}

func familySlug(family string) string {
	s := strings.ToLower(family)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.Trim(s, `"'`)
	return s
}

package drawing

import (
	"path/filepath"
	"strings"
)

// Artifact file suffixes, appended to the drawing's base name.
const (
	PDFExt            = ".pdf"
	PreviewSuffix     = ".png"
	CoordinatesSuffix = ".coords.json"
	DescriptorsSuffix = ".data.json"
)

// ArtifactPaths locates the three artifacts of one drawing.
type ArtifactPaths struct {
	Name        string
	Preview     string
	Coordinates string
	Descriptors string
}

// PathsFor resolves artifact paths for drawing name inside dir.
func PathsFor(dir, name string) ArtifactPaths {
	return ArtifactPaths{
		Name:        name,
		Preview:     filepath.Join(dir, name+PreviewSuffix),
		Coordinates: filepath.Join(dir, name+CoordinatesSuffix),
		Descriptors: filepath.Join(dir, name+DescriptorsSuffix),
	}
}

// IsDrawingFile reports whether path names a PDF. The match is case-insensitive.
func IsDrawingFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), PDFExt)
}

// BaseName returns the drawing name for a PDF path: the file name without extension.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ValidName reports whether name can be used as a drawing name without
// escaping the artifact directory.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}

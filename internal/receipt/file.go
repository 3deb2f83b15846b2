package receipt

import (
	"path/filepath"
	"strings"
	"time"
)

// Format distinguishes images from PDFs
type Format string

const (
	FormatImage Format = "image"
	FormatPDF   Format = "pdf"
)

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".heic": "image/heic",
	".heif": "image/heif",
	".pdf":  "application/pdf",
}

// File identifies one pending receipt document
type File struct {
	Path         string    `json:"path"`
	Name         string    `json:"name"`
	Format       Format    `json:"format"`
	ContentType  string    `json:"content_type"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Supported reports whether name has a receipt extension
func Supported(name string) bool {
	_, ok := contentTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// NewFile describes the receipt at path
func NewFile(path string, discoveredAt time.Time) File {
	ext := strings.ToLower(filepath.Ext(path))
	format := FormatImage
	if ext == ".pdf" {
		format = FormatPDF
	}
	return File{
		Path:         path,
		Name:         filepath.Base(path),
		Format:       format,
		ContentType:  contentTypes[ext],
		DiscoveredAt: discoveredAt,
	}
}

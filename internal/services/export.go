package services

import (
	"strings"
	"unicode"

	"github.com/mermaid-studio/engine/internal/models"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
)

// Export formats. FormatMermaid and FormatSVG are accepted aliases.
const (
	FormatSource  = "source"
	FormatImage   = "image"
	FormatMermaid = "mermaid"
	FormatSVG     = "svg"

	MediaTypeSource = "text/plain"
	MediaTypeImage  = "image/svg+xml"
)

// ExportResult is a diagram rendered into a downloadable artifact.
type ExportResult struct {
	Payload   string `json:"content"`
	Filename  string `json:"filename"`
	MediaType string `json:"mimetype"`
}

// ExportDiagram formats d without any permission check.
func ExportDiagram(d *models.Diagram, format string) (*ExportResult, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatSource, FormatMermaid:
		return &ExportResult{
			Payload:   d.SourceText,
			Filename:  SafeFilename(d.Title) + ".mmd",
			MediaType: MediaTypeSource,
		}, nil
	case FormatImage, FormatSVG:
		return &ExportResult{
			Payload:   d.RenderedImage,
			Filename:  SafeFilename(d.Title) + ".svg",
			MediaType: MediaTypeImage,
		}, nil
	default:
		return nil, appErr.UnsupportedFormat(format)
	}
}

// SafeFilename replaces path separators and control characters in title
// with underscores. An empty result falls back to the default title.
func SafeFilename(title string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" || name == "." || name == ".." {
		return DefaultTitle
	}
	return name
}

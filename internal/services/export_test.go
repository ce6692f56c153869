package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mermaid-studio/engine/internal/models"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
)

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Checkout", "Checkout"},
		{"a/b\\c", "a_b_c"},
		{"tab\there\nnew", "tab_here_new"},
		{"  ", DefaultTitle},
		{"..", DefaultTitle},
		{"Ünïcode ✓", "Ünïcode ✓"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeFilename(tt.in), tt.in)
	}
}

func TestExportDiagramAliases(t *testing.T) {
	d := &models.Diagram{Title: "Flow", SourceText: "graph TD\nA-->B", RenderedImage: "<svg/>"}

	for _, format := range []string{"source", "mermaid", "SOURCE"} {
		out, err := ExportDiagram(d, format)
		require.NoError(t, err, format)
		assert.Equal(t, "Flow.mmd", out.Filename)
		assert.Equal(t, d.SourceText, out.Payload)
	}
	for _, format := range []string{"image", "svg"} {
		out, err := ExportDiagram(d, format)
		require.NoError(t, err, format)
		assert.Equal(t, "Flow.svg", out.Filename)
		assert.Equal(t, MediaTypeImage, out.MediaType)
	}

	_, err := ExportDiagram(d, "png")
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeUnsupportedFormat))
}

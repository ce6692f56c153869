package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := InitWriter("debug", "json", &buf)
	require.NoError(t, err)

	l.Info("diagram saved", zap.String("diagram_id", "abc"))
	Sync()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "diagram saved", entry["message"])
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "abc", entry["diagram_id"])
	require.Same(t, l, L())
}

func TestInitRejectsBadInput(t *testing.T) {
	_, err := Init("loud", "json")
	require.Error(t, err)

	_, err = Init("info", "xml")
	require.Error(t, err)
}

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: DebugLevel, Output: &buf, JSON: true})

	log.With("component", "ingest").Info("document ingested", "source", "vitamin_c.pdf", "chunks", 4)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "document ingested", entry["msg"])
	assert.Equal(t, "ingest", entry["component"])
	assert.Equal(t, "vitamin_c.pdf", entry["source"])
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: WarnLevel, Output: &buf})

	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	custom := NewLogger(TestConfig())
	ctx := ContextWithLogger(context.Background(), custom)
	assert.Same(t, custom, FromContext(ctx))
}

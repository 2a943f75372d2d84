package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParsesLevel(t *testing.T) {
	t.Parallel()

	log, err := New(Config{Level: "warn"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())

	log, err = New(Config{Level: "warn", Debug: true}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())

	log, err = New(Config{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Level: "loud"}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestWithComponentTagsEntries(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New(Config{}, &buf)
	require.NoError(t, err)

	WithComponent(log, "reconciler").Info().Msg("tick")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "reconciler", entry["component"])
	assert.Equal(t, "tick", entry["message"])
	assert.Equal(t, "info", entry["level"])
}

package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("webhook", &buf, false)
	log.Info().Str("job_id", "j1").Msg("applied")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "webhook", entry["component"])
	assert.Equal(t, "j1", entry["job_id"])
	assert.Equal(t, "applied", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestSetup_UnknownLevelFallsBackToInfo(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	Setup("shouting")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	Setup("DEBUG")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

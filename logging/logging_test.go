package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/production-report/logging"
)

func TestNewWithWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter(logging.Config{Level: "warn"}, &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("file", "a.xlsx").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "a.xlsx", entry["file"])
	assert.Equal(t, "shown", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewWithWriter_DefaultsToInfo(t *testing.T) {
	for _, level := range []string{"", "verbose"} {
		log := logging.NewWithWriter(logging.Config{Level: level}, &bytes.Buffer{})
		assert.Equal(t, zerolog.InfoLevel, log.GetLevel(), "level %q", level)
	}
}

func TestNewWithWriter_Pretty(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter(logging.Config{Level: "debug", Pretty: true}, &buf)
	log.Debug().Msg("Loading data")

	out := buf.String()
	assert.Contains(t, out, "Loading data")
	assert.NotContains(t, out, `"message"`)
}

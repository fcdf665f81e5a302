package config

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONFormat(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logger := newLogger(LoggerConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info().Msg("dropped")
	logger.Warn().Str("order_id", "o-1").Msg("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "storefront", entry["app"])
	assert.Equal(t, "o-1", entry["order_id"])
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestNewLogger_UnknownLevelDefaultsToInfo(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	_ = newLogger(LoggerConfig{Level: "loud", Format: "console"}, &buf)

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

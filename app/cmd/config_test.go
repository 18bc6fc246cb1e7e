package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigHelpers(t *testing.T) {
	data := map[string]interface{}{
		"mode": map[string]interface{}{
			"name": "full",
		},
	}
	value, ok := getConfigValue(data, "mode.name")
	require.True(t, ok)
	require.Equal(t, "full", value)

	require.NoError(t, setConfigValue(data, "mode.name", "read_only"))
	value, ok = getConfigValue(data, "mode.name")
	require.True(t, ok)
	require.Equal(t, "read_only", value)

	require.NoError(t, setConfigValue(data, "security.max_file_size_bytes", 2_000_000))
	value, ok = getConfigValue(data, "security.max_file_size_bytes")
	require.True(t, ok)
	require.Equal(t, 2_000_000, value)

	_, ok = getConfigValue(data, "telemetry.event_log")
	require.False(t, ok)
}

func TestParseValue(t *testing.T) {
	require.Equal(t, true, parseValue("true"))
	require.Equal(t, int64(42), parseValue("42"))
	require.Equal(t, 1.5, parseValue("1.5"))
	require.Equal(t, "stdio", parseValue("stdio"))
}

func TestPrettyValue(t *testing.T) {
	require.Equal(t, "[a, b]", prettyValue([]interface{}{"a", "b"}))
	require.Equal(t, "full", prettyValue("full"))
}

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/require"
)

func TestOneJSONObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, logiface.LevelTrace)

	l.Info().Str("k", "v").Log("first")
	l.Err().Int("n", 3).Log("second")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, "first", first["msg"])
	require.Equal(t, "v", first["k"])
	require.Contains(t, first, "ts")
	require.Contains(t, first, "lvl")

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.Equal(t, "second", second["msg"])
	require.EqualValues(t, 3, second["n"])
}

func TestForProcessTagsEveryLineWithPid(t *testing.T) {
	var buf bytes.Buffer
	root := New(&buf, logiface.LevelTrace)
	l := ForProcess(root, 42)

	l.Info().Log("a")
	l.Info().Log("b")

	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		var obj map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &obj))
		require.EqualValues(t, 42, obj["pid"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, logiface.LevelError)

	l.Debug().Log("dropped")
	l.Err().Log("kept")

	out := buf.String()
	require.NotContains(t, out, "dropped")
	require.Contains(t, out, "kept")
}

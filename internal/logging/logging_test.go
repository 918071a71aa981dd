package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_SetsGlobalLevel(t *testing.T) {
	Init(true)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	Init(false)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestConsoleWriter_PlainText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := zerolog.New(consoleWriter(&buf, true))
	l.Info().Int("iteration", 3).Msg("sending keys")
	assert.Contains(t, buf.String(), "sending keys")
	assert.Contains(t, buf.String(), "iteration=3")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestAudit_WritesJSONLinesWithSession(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	a := newAudit(&buf, nil, "pllm-abc")
	a.Info().Str("purpose", "sample").Msg("prompt")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "pllm-abc", line["session"])
	assert.Equal(t, "sample", line["purpose"])
	assert.Equal(t, "prompt", line["message"])
	assert.NoError(t, a.Close())
}

func TestOpenAudit_AppendsAcrossOpens(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "pllm.log")
	for i := 0; i < 2; i++ {
		a, err := OpenAudit(path, "s")
		require.NoError(t, err)
		a.Info().Msg("line")
		require.NoError(t, a.Close())
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestOpenAudit_EmptyPathIsDisabled(t *testing.T) {
	t.Parallel()

	a, err := OpenAudit("", "s")
	require.NoError(t, err)
	a.Info().Msg("dropped")
	assert.NoError(t, a.Close())
}

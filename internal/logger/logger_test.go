package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "toolbridge.log")

	closer, err := Setup(Config{Level: "debug", File: path, Console: false})
	require.NoError(t, err)
	defer closer.Close()

	log.Info().Str("tool", "echo").Msg("registered")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "registered")
	assert.Contains(t, string(data), `"tool":"echo"`)
}

func TestSetup_InvalidLevelFallsBackToInfo(t *testing.T) {
	closer, err := Setup(Config{Level: "chatty", Console: true})
	require.NoError(t, err)
	defer closer.Close()
}

func TestRedactor(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"api key", "key=sk-abcdefghijklmnopqrstuvwxyz123456", "key=[REDACTED]"},
		{"bearer", "Authorization: Bearer abc.def.ghi", "Authorization: [REDACTED]"},
		{"password", `password=hunter2!`, `password[REDACTED]`},
		{"clean", "nothing to hide", "nothing to hide"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Redact(tt.in))
		})
	}
}

func TestRedactor_AddPattern(t *testing.T) {
	r := NewRedactor()
	require.NoError(t, r.AddPattern(`internal-[0-9]+`))
	assert.Equal(t, "[REDACTED]", r.Redact("internal-42"))

	assert.Error(t, r.AddPattern(`([`))
}

func TestRedactor_Wrap(t *testing.T) {
	var buf bytes.Buffer
	w := NewRedactor().Wrap(&buf)

	_, err := w.Write([]byte("token: abcdefghijklmnopqrstuvwxyz"))
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]", buf.String())
}

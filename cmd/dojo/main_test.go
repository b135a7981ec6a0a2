package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTemplate_ImportExport(t *testing.T) {
	data := t.TempDir()
	tmpl := filepath.Join(t.TempDir(), "kumite.yaml")
	require.NoError(t, os.WriteFile(tmpl, []byte(`
intervals:
  - name: Kihon
    duration: 90
    countdown: 5
    repeat: 2
    kind: action
  - name: Rest
    duration: 30
    kind: Pause
`), 0o600))

	out, err := run(t, "--storage", "file", "--data", data, "--user", "sensei", "template", "import", tmpl)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 intervals (210 seconds) for sensei")

	out, err = run(t, "--storage", "file", "--data", data, "--user", "sensei", "template", "export")
	require.NoError(t, err)
	assert.Contains(t, out, "name: Kihon")
	assert.Contains(t, out, "kind: Pause")
	assert.Contains(t, out, "repeat: 2")

	// a different user still sees the default template
	out, err = run(t, "--storage", "file", "--data", data, "--user", "student", "template", "export")
	require.NoError(t, err)
	assert.Contains(t, out, "name: Warm-up")
}

func TestTemplate_ImportRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown field": "intervals:\n  - name: X\n    duration: 5\n    tempo_bpm: 90\n",
		"missing name":  "intervals:\n  - duration: 5\n    kind: Action\n",
		"bad kind":      "intervals:\n  - name: X\n    duration: 5\n    kind: Sparring\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			tmpl := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(tmpl, []byte(body), 0o600))

			_, err := run(t, "--storage", "memory", "template", "import", tmpl)
			assert.Error(t, err)
		})
	}
}

func TestHistory_Empty(t *testing.T) {
	out, err := run(t, "--storage", "bolt", "--data", t.TempDir(), "history")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "DATE"))
	assert.Contains(t, out, "0 sessions, 0s total")

	_, err = run(t, "--storage", "memory", "history", "--since", "last tuesday")
	assert.ErrorContains(t, err, "--since")
}

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("2024-05-01T00:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseSince("48h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-48*time.Hour), got)
}

func TestUnknownBackendFailsEarly(t *testing.T) {
	_, err := run(t, "--storage", "floppy", "history")
	assert.ErrorContains(t, err, "storage.backend")
}

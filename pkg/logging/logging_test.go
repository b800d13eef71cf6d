package logging

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gotest.tools/v3/env"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want string
	}{
		{name: "zero", in: 0, want: "00:00:00"},
		{name: "sub-second truncated", in: 900 * time.Millisecond, want: "00:00:00"},
		{name: "minutes and seconds", in: 2*time.Minute + 5*time.Second, want: "00:02:05"},
		{name: "over an hour", in: 26*time.Hour + 3*time.Minute + 9*time.Second, want: "26:03:09"},
		{name: "negative clamps", in: -time.Second, want: "00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.in))
		})
	}
}

func TestGroup_GitHubActions(t *testing.T) {
	env.Patch(t, "GITHUB_ACTIONS", "true")

	var buf bytes.Buffer
	log := New(&buf, false)
	end := log.Group("Lint")
	end()

	assert.Equal(t, "::group::Lint\n::endgroup::\n", buf.String())
}

func TestGroup_Plain(t *testing.T) {
	env.Patch(t, "GITHUB_ACTIONS", "")

	var buf bytes.Buffer
	log := New(&buf, false)
	log.Group("Format")()

	// A bytes.Buffer is never a terminal, so no escape codes are emitted.
	assert.Equal(t, "==> Format\n", buf.String())
}

func TestVerboseLevel(t *testing.T) {
	var quiet, loud bytes.Buffer
	New(&quiet, false).Debug("hidden")
	New(&loud, true).Debug("shown", "key", "value")

	assert.Empty(t, quiet.String())
	assert.Contains(t, loud.String(), "msg=shown")
	assert.Contains(t, loud.String(), "key=value")
}

func TestColorEnabled(t *testing.T) {
	assert.False(t, ColorEnabled(&bytes.Buffer{}))

	env.Patch(t, "NO_COLOR", "1")
	assert.False(t, ColorEnabled(&bytes.Buffer{}))
}

package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"short", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"long", "abcdef", 3, "abc...\n[truncated]"},
		{"multibyte", "13–15 band", 3, "13–...\n[truncated]"},
		{"negative limit", "abc", -1, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.text, tt.n))
		})
	}
}

func TestWriteFeedback(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteFeedback(dir, "**Score: 13/15**")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultFeedbackFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "**Score: 13/15**", string(data))

	custom := filepath.Join(dir, "essay-1.txt")
	path, err = WriteFeedback(custom, "feedback")
	require.NoError(t, err)
	assert.Equal(t, custom, path)

	_, err = WriteFeedback(filepath.Join(dir, "missing", "x.txt"), "feedback")
	assert.Error(t, err)
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("# Feedback\n\nScore: 12/15\n\nClear point and evidence.", 60, "notty")
	require.NoError(t, err)
	assert.Contains(t, out, "Score: 12/15")
	assert.Contains(t, out, "Clear point and evidence.")
	assert.NotEmpty(t, strings.TrimSpace(out))
}

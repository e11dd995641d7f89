// Package output presents evaluation feedback outside the browser: rendered in a
// terminal, copied to the clipboard or saved as a text file.
package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
)

// DefaultFeedbackFile is the file name offered when feedback is downloaded.
const DefaultFeedbackFile = "peel_feedback.txt"

// Preview lengths for example texts.
const (
	CorpusPreviewChars   = 500
	SelectedPreviewChars = 800
)

const truncatedSuffix = "...\n[truncated]"

// RenderMarkdown renders markdown for a terminal. A width of zero or less
// disables word wrapping. style selects a glamour style; empty picks one
// based on the terminal background.
func RenderMarkdown(text string, width int, style string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(max(width, 0))}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	out, err := r.Render(text)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

// CopyToClipboard places text on the system clipboard.
func CopyToClipboard(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard is not supported on this system")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return nil
}

// WriteFeedback saves feedback as plain text. A directory path, or an empty path,
// gets DefaultFeedbackFile appended. It returns the path written.
func WriteFeedback(path, feedback string) (string, error) {
	if path == "" {
		path = DefaultFeedbackFile
	} else if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, DefaultFeedbackFile)
	}

	if err := os.WriteFile(path, []byte(feedback), 0o644); err != nil {
		return "", fmt.Errorf("failed to write feedback: %w", err)
	}
	return path, nil
}

// Truncate shortens text to at most n runes followed by a truncation marker.
// Text that already fits is returned unchanged.
func Truncate(text string, n int) string {
	runes := []rune(text)
	if n < 0 || len(runes) <= n {
		return text
	}
	return string(runes[:n]) + truncatedSuffix
}

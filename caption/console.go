// Package caption delivers translated segments to viewers. Every sink
// implements the same single-method surface so the pipeline stays
// ignorant of where captions go.
package caption

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"lingocap/pipeline"
)

var (
	captionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
	uncertainStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208"))
	seqStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("239"))
)

// Console prints one caption line per segment. Low-confidence segments
// get a visible marker rather than being hidden; viewers judge for
// themselves.
type Console struct {
	mu         sync.Mutex
	w          io.Writer
	showSource bool
}

func NewConsole(w io.Writer, showSource bool) *Console {
	return &Console{w: w, showSource: showSource}
}

func (c *Console) Display(ts pipeline.TranslatedSegment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := seqStyle.Render(fmt.Sprintf("[%s]", ts.Captured.Format("15:04:05")))

	var line string
	switch {
	case ts.Failed:
		line = failedStyle.Render(ts.Translated)
	case ts.LowConfidence:
		line = uncertainStyle.Render("(?) ") + captionStyle.Render(ts.Translated)
	default:
		line = captionStyle.Render(ts.Translated)
	}

	fmt.Fprintf(c.w, "%s %s\n", prefix, line)
	if c.showSource && ts.SourceText != "" {
		fmt.Fprintf(c.w, "     %s\n", sourceStyle.Render(ts.SourceText))
	}
}

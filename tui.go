package main

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lingocap/pipeline"
)

// TUI message types
type CaptionMsg struct{ Segment pipeline.TranslatedSegment }
type AudioLevelMsg struct{ Level float64 }
type PhaseMsg struct{ Text string }      // "LIVE", "DRAINING", ...
type ModeLineMsg struct{ Text string }   // backend/language info
type DeviceLineMsg struct{ Text string } // microphone device name
type StatsMsg struct{ Snapshot statsSnapshot }
type tickMsg time.Time

// maxCaptions bounds the rolling list kept for rendering.
const maxCaptions = 64

type tuiModel struct {
	frame         int
	audioLevel    float64
	width, height int
	phase         string
	modeLine      string // "[groq -> gpt-4o-mini | ru -> en]"
	deviceLine    string
	captions      []pipeline.TranslatedSegment
	stats         statsSnapshot
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	headerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	liveStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	drainStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	captionText    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	lastCaption    = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true)
	sourceText     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	failedText     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	uncertainText  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	meterOnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	meterHotStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	meterOffStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpBoldStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	statsLineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

func NewTUIProgram() *tea.Program {
	m := tuiModel{phase: "STARTING"}
	return tea.NewProgram(m, tea.WithAltScreen())
}

// tuiSend delivers a message to the running program, if any. Safe to
// call from pipeline goroutines before the program is up or after it
// has quit.
func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()

	if p != nil {
		p.Send(msg)
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case CaptionMsg:
		m.captions = append(m.captions, msg.Segment)
		if len(m.captions) > maxCaptions {
			m.captions = m.captions[len(m.captions)-maxCaptions:]
		}

	case AudioLevelMsg:
		// Smoothed so the meter does not flicker at chunk boundaries.
		m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4

	case PhaseMsg:
		m.phase = msg.Text

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case StatsMsg:
		m.stats = msg.Snapshot
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder

	// Header: phase, meter, mode, device
	switch m.phase {
	case "LIVE":
		b.WriteString(liveStyle.Render("● LIVE"))
	case "DRAINING":
		b.WriteString(drainStyle.Render("◌ DRAINING"))
	default:
		b.WriteString(dimStyle.Render("○ " + m.phase))
	}
	b.WriteString("  ")
	b.WriteString(renderLevelMeter(m.audioLevel))
	b.WriteString("\n")

	if m.modeLine != "" {
		b.WriteString(headerStyle.Render(m.modeLine))
		b.WriteString("\n")
	}
	if m.deviceLine != "" {
		b.WriteString(dimStyle.Render(m.deviceLine))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	header := b.String()
	headerLines := strings.Count(header, "\n")

	// Footer: stats plus help line
	var footer strings.Builder
	footer.WriteString("\n")
	if m.stats.Delivered > 0 {
		footer.WriteString(statsLineStyle.Render(m.stats.String()))
		footer.WriteString("\n")
	}
	footer.WriteString(helpBoldStyle.Render("q") + helpStyle.Render(" or ") +
		helpBoldStyle.Render("Ctrl+C") + helpStyle.Render(" to stop  ·  lingocap "+version))
	footerLines := strings.Count(footer.String(), "\n") + 1

	// Captions fill what is left, newest at the bottom.
	avail := m.height - headerLines - footerLines
	if avail < 1 {
		avail = 1
	}
	wrapWidth := m.width - 11
	if wrapWidth < 20 {
		wrapWidth = 20
	}

	var lines []string
	for i, ts := range m.captions {
		last := i == len(m.captions)-1
		lines = append(lines, renderCaption(ts, wrapWidth, last)...)
	}
	if len(lines) > avail {
		lines = lines[len(lines)-avail:]
	}

	b.Reset()
	b.WriteString(header)
	for i := 0; i < avail; i++ {
		if i < len(lines) {
			b.WriteString(lines[i])
		}
		b.WriteString("\n")
	}
	b.WriteString(footer.String())
	return b.String()
}

func renderCaption(ts pipeline.TranslatedSegment, wrapWidth int, last bool) []string {
	stamp := timeStyle.Render(ts.Captured.Format("15:04:05"))

	style := captionText
	if last {
		style = lastCaption
	}
	text := ts.Translated
	switch {
	case ts.Failed:
		style = failedText
	case ts.LowConfidence:
		style = uncertainText
		text = "(?) " + text
	}

	var out []string
	for i, line := range wrapText(text, wrapWidth) {
		if i == 0 {
			out = append(out, stamp+" "+style.Render(line))
		} else {
			out = append(out, strings.Repeat(" ", 9)+style.Render(line))
		}
	}
	if showSource && ts.SourceText != "" {
		for _, line := range wrapText(ts.SourceText, wrapWidth) {
			out = append(out, strings.Repeat(" ", 9)+sourceText.Render(line))
		}
	}
	return out
}

func renderLevelMeter(level float64) string {
	const cells = 24
	lit := int(level * 3 * cells)
	if lit > cells {
		lit = cells
	}
	var b strings.Builder
	for i := 0; i < cells; i++ {
		switch {
		case i >= lit:
			b.WriteString(meterOffStyle.Render("▁"))
		case i >= cells*3/4:
			b.WriteString(meterHotStyle.Render("▆"))
		default:
			b.WriteString(meterOnStyle.Render("▆"))
		}
	}
	return b.String()
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

// tuiSink forwards delivered captions into the TUI event loop.
type tuiSink struct{}

func (tuiSink) Display(ts pipeline.TranslatedSegment) {
	tuiSend(CaptionMsg{Segment: ts})
}

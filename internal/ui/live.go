// Package ui implements a live terminal view of the beat-detection
// pipeline: a scrolling onset-strength sparkline, a peak flash, and the
// most recently estimated tempo.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	pulseYellow = lipgloss.Color("#FFD700")
	pulseOrange = lipgloss.Color("#FF8C00")
	pulseRed    = lipgloss.Color("#FF4500")
	pulseBlue   = lipgloss.Color("#1E90FF")
	dimGray     = lipgloss.Color("#3A3A3A")
)

// OSFMsg reports a single onset-strength sample.
type OSFMsg struct {
	Timestamp float64
	Magnitude float64
}

// PeakMsg reports a detected onset peak.
type PeakMsg struct {
	Timestamp float64
}

// BeatMsg reports an updated tempo estimate.
type BeatMsg struct {
	Timestamp float64
	BPM       float32
}

// QuitMsg signals the stream has ended and the view should exit.
type QuitMsg struct{}

// ProgressMsg reports how far a source has been consumed. Sources of
// unknown length report TotalSamples 0, in which case the bar is
// omitted from the view.
type ProgressMsg struct {
	ProcessedSamples int64
	TotalSamples     int64
}

const historyWidth = 80

// Model is the Bubbletea model for the live view.
type Model struct {
	history     []float64 // ring of recent OSF magnitudes, newest last
	maxHistory  float64
	lastPeakAge int // ticks since the last peak, for the flash indicator
	bpm         float32
	bpmAge      time.Duration
	lastUpdate  time.Time
	width       int

	bar              progress.Model
	processedSamples int64
	totalSamples     int64
}

// NewModel creates a fresh live-view model.
func NewModel() *Model {
	return &Model{
		history:    make([]float64, 0, historyWidth),
		lastUpdate: time.Now(),
		bar:        progress.New(progress.WithGradient(string(pulseBlue), string(pulseYellow)), progress.WithWidth(historyWidth)),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = historyWidth
		return m, nil

	case ProgressMsg:
		m.processedSamples = msg.ProcessedSamples
		m.totalSamples = msg.TotalSamples
		return m, nil

	case OSFMsg:
		m.push(msg.Magnitude)
		m.lastPeakAge++
		return m, nil

	case PeakMsg:
		m.lastPeakAge = 0
		return m, nil

	case BeatMsg:
		m.bpm = msg.BPM
		m.lastUpdate = time.Now()
		return m, nil

	case QuitMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) push(v float64) {
	if v > m.maxHistory {
		m.maxHistory = v
	}
	m.history = append(m.history, v)
	if len(m.history) > historyWidth {
		m.history = m.history[len(m.history)-historyWidth:]
		// Recompute the running max so a single historical spike doesn't
		// permanently flatten the sparkline.
		m.maxHistory = 0
		for _, h := range m.history {
			if h > m.maxHistory {
				m.maxHistory = h
			}
		}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var s strings.Builder

	title := lipgloss.NewStyle().Bold(true).Foreground(pulseBlue).Render("tempodetect — live")
	s.WriteString(title)
	s.WriteString("\n\n")

	if m.totalSamples > 0 {
		percent := float64(m.processedSamples) / float64(m.totalSamples)
		if percent > 1 {
			percent = 1
		}
		s.WriteString(m.bar.ViewAs(percent))
		s.WriteString("\n\n")
	}

	s.WriteString(renderSparkline(m.history, m.maxHistory))
	s.WriteString("\n\n")

	flash := "  "
	if m.lastPeakAge < 3 {
		flash = lipgloss.NewStyle().Foreground(pulseRed).Bold(true).Render("●")
	}
	s.WriteString(flash)
	s.WriteString(" ")

	bpmLabel := lipgloss.NewStyle().Foreground(dimGray).Render("BPM:")
	var bpmValue string
	if m.bpm > 0 {
		bpmValue = lipgloss.NewStyle().Bold(true).Foreground(pulseYellow).Render(fmt.Sprintf("%.1f", m.bpm))
	} else {
		bpmValue = lipgloss.NewStyle().Faint(true).Italic(true).Render("warming up...")
	}
	s.WriteString(bpmLabel)
	s.WriteString(" ")
	s.WriteString(bpmValue)

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(pulseOrange).
		Padding(1, 2).
		Render(s.String())
}

// renderSparkline draws a single-row, colour-graded onset-strength trace.
func renderSparkline(history []float64, maxVal float64) string {
	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	colors := []lipgloss.Color{
		lipgloss.Color("#1E3A5F"),
		lipgloss.Color("#1E5F8C"),
		lipgloss.Color("#1E90FF"),
		lipgloss.Color("#5FB8FF"),
		pulseOrange,
		pulseRed,
		pulseYellow,
	}

	if maxVal <= 0 {
		maxVal = 1
	}

	var out strings.Builder
	for i := 0; i < historyWidth; i++ {
		if i >= historyWidth-len(history) {
			v := history[i-(historyWidth-len(history))] / maxVal
			if v > 1 {
				v = 1
			}
			blockIdx := int(v * float64(len(blocks)-1))
			colorIdx := int(v * float64(len(colors)-1))
			out.WriteString(lipgloss.NewStyle().Foreground(colors[colorIdx]).Render(string(blocks[blockIdx])))
		} else {
			out.WriteString(lipgloss.NewStyle().Foreground(dimGray).Render("▁"))
		}
	}
	return out.String()
}

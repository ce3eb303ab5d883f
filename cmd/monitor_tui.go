// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/benchtop/pkg/instrument"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	sampler  *sampler
	connInfo string
	interval time.Duration
	start    time.Time

	latest   *instrument.Sample
	readings int
	failures int

	history    table.Model
	rows       []table.Row
	maxRows    int
	eventLog   []eventLogEntry
	maxEntries int

	width    int
	height   int
	paused   bool
	quitting bool

	// At most one read or tick is outstanding so pausing and resuming
	// never starts a second polling chain.
	inFlight    bool
	tickPending bool
}

// Messages
type monitorTickMsg time.Time

type sampleMsg struct {
	sample instrument.Sample
	err    error
	at     time.Time
}

func newMonitorModel(s *sampler, connInfo string, interval time.Duration, maxRows int) monitorModel {
	if maxRows < 1 {
		maxRows = 1
	}

	columns := []table.Column{
		{Title: "Time (s)", Width: 12},
		{Title: s.labels[0], Width: 16},
		{Title: s.labels[1], Width: 16},
	}
	history := table.New(
		table.WithColumns(columns),
		table.WithHeight(10),
		table.WithFocused(true),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	history.SetStyles(styles)

	return monitorModel{
		sampler:    s,
		connInfo:   connInfo,
		interval:   interval,
		start:      time.Now(),
		history:    history,
		maxRows:    maxRows,
		eventLog:   make([]eventLogEntry, 0),
		maxEntries: 100,
		width:      80,
		height:     24,
		inFlight:   true, // Init issues the first read
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		m.readCmd(),
		tea.EnterAltScreen,
	)
}

// readCmd takes one reading. Only one read is in flight at a time: the next
// is scheduled after the result arrives.
func (m monitorModel) readCmd() tea.Cmd {
	read := m.sampler.read
	return func() tea.Msg {
		s, err := read()
		return sampleMsg{sample: s, err: err, at: time.Now()}
	}
}

func (m monitorModel) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "p", " ":
			m.paused = !m.paused
			if m.paused {
				m.addLogEntry("Polling paused", false)
				return m, nil
			}
			m.addLogEntry("Polling resumed", false)
			if m.inFlight || m.tickPending {
				return m, nil
			}
			m.inFlight = true
			return m, m.readCmd()
		}
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.history.SetHeight(max(5, m.height-22))

	case monitorTickMsg:
		m.tickPending = false
		if m.paused || m.inFlight {
			return m, nil
		}
		m.inFlight = true
		return m, m.readCmd()

	case sampleMsg:
		m.inFlight = false
		m.record(msg)
		if m.paused || m.tickPending {
			return m, nil
		}
		m.tickPending = true
		return m, m.tickCmd()
	}

	return m, nil
}

// record stores a reading or logs its failure.
func (m *monitorModel) record(msg sampleMsg) {
	if msg.err != nil {
		m.failures++
		m.addLogEntry(fmt.Sprintf("READ FAILED: %v", msg.err), true)
		return
	}

	s := msg.sample
	s.Time = msg.at.Sub(m.start).Seconds()
	m.latest = &s
	m.readings++

	m.rows = append(m.rows, table.Row{
		fmt.Sprintf("%.3f", s.Time),
		fmt.Sprintf("%.6g", s.X),
		fmt.Sprintf("%.6g", s.Y),
	})
	if len(m.rows) > m.maxRows {
		m.rows = m.rows[len(m.rows)-m.maxRows:]
	}
	m.history.SetRows(m.rows)
	m.history.GotoBottom()
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	noticeStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("BENCHTOP - " + strings.ToUpper(m.sampler.kind) + " MONITOR"))
	s.WriteString("\n")
	state := "Polling every " + m.interval.String()
	if m.paused {
		state = "Paused"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %s | 'p' pause, 'q' quit", m.connInfo, state)))
	s.WriteString("\n\n")

	// Latest reading
	latest := strings.Builder{}
	if m.latest == nil {
		latest.WriteString(noticeStyle.Render("Waiting for first reading..."))
	} else {
		latest.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
			labelStyle.Render(m.sampler.labels[0]+":"), valueStyle.Render(fmt.Sprintf("%.6g", m.latest.X)),
			labelStyle.Render(m.sampler.labels[1]+":"), valueStyle.Render(fmt.Sprintf("%.6g", m.latest.Y)),
			labelStyle.Render("at"), valueStyle.Render(fmt.Sprintf("%.3f s", m.latest.Time)),
		))
	}
	s.WriteString(boxStyle.Render(latest.String()))
	s.WriteString("\n")

	// Connection statistics
	st := m.sampler.stats
	failStyle := valueStyle
	if m.failures > 0 {
		failStyle = errorStyle
	}
	stats := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s   %s %s",
		labelStyle.Render("Readings:"), valueStyle.Render(fmt.Sprintf("%d", m.readings)),
		labelStyle.Render("Failed:"), failStyle.Render(fmt.Sprintf("%d", m.failures)),
		labelStyle.Render("Timeouts:"), failStyle.Render(fmt.Sprintf("%d", st.Timeouts.Load())),
		labelStyle.Render("Bytes out/in:"), valueStyle.Render(fmt.Sprintf("%d/%d", st.BytesWritten.Load(), st.BytesRead.Load())),
		labelStyle.Render("Up:"), valueStyle.Render(time.Since(m.start).Truncate(time.Second).String()),
	)
	s.WriteString(boxStyle.Render(stats))
	s.WriteString("\n")

	// History
	s.WriteString(boxStyle.Render(m.history.View()))
	s.WriteString("\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logContent := strings.Builder{}
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		startIdx := max(0, len(m.eventLog)-5)
		for _, entry := range m.eventLog[startIdx:] {
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					noticeStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}
	s.WriteString(boxStyle.Width(max(20, m.width-4)).Render(logContent.String()))

	return s.String()
}

// Package tui implements the live notification monitor.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"

	"github.com/allbin/serialmcp"
	"github.com/allbin/serialmcp/internal/tui/keys"
	"github.com/allbin/serialmcp/internal/tui/styles"
)

const (
	columnKeyTime  = "time"
	columnKeyData  = "data"
	columnKeyBytes = "bytes"

	// pollInterval is how often the monitor drains the notification queue.
	pollInterval = 200 * time.Millisecond

	// maxRetained caps the scrollback; oldest entries are discarded first.
	maxRetained = 1000
)

// NotificationSource is the driver surface the monitor reads from.
type NotificationSource interface {
	DrainNotifications(clear bool) []serialmcp.Notification
	Status() serialmcp.Status
	Metrics() serialmcp.MetricsSnapshot
}

type tickMsg time.Time

// MonitorModel is the Bubble Tea model for the monitor command.
type MonitorModel struct {
	src  NotificationSource
	keys keys.MonitorKeys
	help help.Model

	table    table.Model
	retained []serialmcp.Notification

	status  serialmcp.Status
	metrics serialmcp.MetricsSnapshot

	showHex bool
	paused  bool
	ready   bool
	width   int
	height  int
}

// NewMonitor creates the monitor model for a driver.
func NewMonitor(src NotificationSource) *MonitorModel {
	t := table.New([]table.Column{
		table.NewColumn(columnKeyTime, "Time", 14),
		table.NewFlexColumn(columnKeyData, "Data", 1),
		table.NewColumn(columnKeyBytes, "Bytes", 6),
	}).
		WithBaseStyle(styles.TableBaseStyle).
		HeaderStyle(styles.TableHeaderStyle).
		WithPageSize(20).
		Focused(true)

	return &MonitorModel{
		src:    src,
		keys:   keys.NewMonitorKeys(),
		help:   help.New(),
		table:  t,
		status: src.Status(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *MonitorModel) Init() tea.Cmd {
	return tick()
}

func (m *MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeTable()

	case tickMsg:
		if !m.paused {
			fresh := m.src.DrainNotifications(true)
			if len(fresh) > 0 {
				m.retained = append(m.retained, fresh...)
				if len(m.retained) > maxRetained {
					m.retained = m.retained[len(m.retained)-maxRetained:]
				}
				m.refreshRows()
			}
		}
		m.status = m.src.Status()
		m.metrics = m.src.Metrics()
		return m, tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll

		case key.Matches(msg, m.keys.Clear):
			m.retained = nil
			m.refreshRows()

		case key.Matches(msg, m.keys.ToggleHex):
			m.showHex = !m.showHex
			m.refreshRows()

		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *MonitorModel) resizeTable() {
	pageSize := m.height - 8 // title, borders, status bar, help line
	if pageSize < 3 {
		pageSize = 3
	}
	m.table = m.table.
		WithTargetWidth(m.width).
		WithPageSize(pageSize)
}

func (m *MonitorModel) refreshRows() {
	rows := make([]table.Row, len(m.retained))
	for i, n := range m.retained {
		rows[i] = table.NewRow(table.RowData{
			columnKeyTime:  n.Timestamp.Format("15:04:05.000"),
			columnKeyData:  m.formatData(n),
			columnKeyBytes: fmt.Sprintf("%d", len(n.Raw)),
		})
	}
	m.table = m.table.WithRows(rows)
}

func (m *MonitorModel) formatData(n serialmcp.Notification) string {
	if m.showHex || n.IsHex {
		return serialmcp.GroupHex(n.Raw)
	}
	return n.Data
}

func (m *MonitorModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	title := styles.TitleStyle.Render("Serial Notifications")

	var parts []string
	parts = append(parts, title, styles.ContentBorderStyle.Render(m.table.View()))

	if m.help.ShowAll {
		parts = append(parts, styles.HelpBoxStyle.Render(m.help.View(m.keys)))
	}

	parts = append(parts, m.statusBar())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *MonitorModel) statusBar() string {
	var conn string
	if m.status.Connected {
		conn = styles.StatusConnectedStyle.Render("● CONNECTED")
	} else {
		conn = styles.StatusDisconnectedStyle.Render("● DISCONNECTED")
	}

	port := styles.StatusSegmentStyle.Render(
		fmt.Sprintf("%s @ %d", m.status.Port, m.status.BaudRate))

	mode := "ASYNC"
	if m.status.SyncMode {
		mode = "SYNC"
	}
	modeSeg := styles.StatusSegmentStyle.Render(mode)

	pending := styles.StatusSegmentStyle.Render(
		fmt.Sprintf("pending: %d", m.status.PendingNotifications))

	var extras []string
	if m.metrics.NotifyOverflow > 0 {
		extras = append(extras, styles.OverflowStyle.Render(
			fmt.Sprintf("dropped: %d", m.metrics.NotifyOverflow)))
	}
	if m.paused {
		extras = append(extras, styles.StatusPausedStyle.Render("PAUSED"))
	}

	segments := append([]string{conn, port, modeSeg, pending}, extras...)
	return lipgloss.JoinHorizontal(lipgloss.Top, segments...)
}

// Run starts the monitor program and blocks until the user quits.
func Run(src NotificationSource) error {
	p := tea.NewProgram(NewMonitor(src), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/ctxbridge/ctxbridge/pkg/config"
	"github.com/ctxbridge/ctxbridge/pkg/fabric/discovery"
)

// Color palette for the monitor dashboard, in the same flat-constant style
// the host TUI uses for its own color scheme.
var (
	accentColor = lipgloss.Color("#A8E6CF")
	mutedColor  = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	helpStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func monitorCmd(args []string) {
	fs := flag.NewFlagSet("ctxbridge monitor", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Live dashboard of discovered fabric instances, refreshed on the
configured heartbeat interval.

Usage:
  ctxbridge monitor [flags]

Flags:`)
		printFlags(fs)
	}
	port := fs.Int("port", 0, "nominal discovery port (default: the configured port range base)")
	configPath := fs.String("config", "", "path to the JSON config file (default: ~/.ctxbridge/config.json)")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}

	homeDir, err := defaultHomeDir()
	if err != nil {
		fatal(err)
	}
	if err := config.Initialize(resolveConfigPath(*configPath, homeDir)); err != nil {
		fatal(fmt.Errorf("load config: %w", err))
	}

	fabricCfg := config.GetFabric()
	nominalPort := *port
	if nominalPort == 0 {
		nominalPort = fabricCfg.PortRangeBase
	}

	client := discovery.New(fabricCfg.PortRangeBase, fabricCfg.PortRangeWidth)
	refresh := time.Duration(fabricCfg.HeartbeatIntervalMS) * time.Millisecond

	m := newMonitorModel(client, nominalPort, refresh)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fatal(fmt.Errorf("run monitor: %w", err))
	}
}

type instancesMsg struct {
	instances []discovery.Instance
	err       error
}

type tickMsg struct{}

type monitorModel struct {
	client       *discovery.Client
	nominalPort  int
	refresh      time.Duration
	table        table.Model
	instances    []discovery.Instance
	lastErr      error
	lastRefresh  time.Time
}

func newMonitorModel(client *discovery.Client, nominalPort int, refresh time.Duration) *monitorModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 26},
			{Title: "NAME", Width: 16},
			{Title: "PORT", Width: 6},
			{Title: "PID", Width: 8},
			{Title: "WORKSPACE", Width: 30},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	return &monitorModel{client: client, nominalPort: nominalPort, refresh: refresh, table: t}
}

func (m *monitorModel) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.tickCmd())
}

func (m *monitorModel) refreshCmd() tea.Cmd {
	client, nominalPort := m.client, m.nominalPort
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		instances, err := client.Discover(ctx, nominalPort)
		return instancesMsg{instances: instances, err: err}
	}
}

func (m *monitorModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.refreshCmd()
		}
	case tickMsg:
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())
	case instancesMsg:
		m.lastErr = msg.err
		m.lastRefresh = time.Now()
		if msg.err == nil {
			m.instances = msg.instances
			m.table.SetRows(rowsFor(msg.instances))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func rowsFor(instances []discovery.Instance) []table.Row {
	rows := make([]table.Row, 0, len(instances))
	for _, inst := range instances {
		rows = append(rows, table.Row{
			inst.ID,
			inst.Name,
			strconv.Itoa(inst.Port),
			strconv.Itoa(inst.PID),
			inst.WorkspacePath,
		})
	}
	return rows
}

func (m *monitorModel) View() string {
	header := titleStyle.Render("ctxbridge monitor") + "  " +
		helpStyle.Render(fmt.Sprintf("refreshed %s ago · q to quit · r to refresh", roundedSince(m.lastRefresh)))

	body := panelStyle.Render(m.table.View())

	status := ""
	if m.lastErr != nil {
		status = helpStyle.Render(fmt.Sprintf("discovery error: %v", m.lastErr))
	} else {
		status = panelStyle.Render(m.selectedDetail())
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, status)
}

// selectedDetail renders the highlighted instance's detail as markdown
// through glamour, giving the dashboard a formatted preview pane alongside
// the plain table.
func (m *monitorModel) selectedDetail() string {
	row := m.table.Cursor()
	if row < 0 || row >= len(m.instances) {
		return helpStyle.Render("no instance selected")
	}
	inst := m.instances[row]

	md := fmt.Sprintf("### %s\n\n- **id**: %s\n- **port**: %d\n- **pid**: %d\n- **workspace**: %s\n- **last heartbeat**: %d\n",
		inst.Name, inst.ID, inst.Port, inst.PID, inst.WorkspacePath, inst.LastHeartbeat)

	rendered, err := glamour.Render(md, "dark")
	if err != nil {
		return md
	}
	return rendered
}

func roundedSince(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return time.Since(t).Round(time.Second).String()
}

package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/oracle-resolver/business/resolver/domain"
	"github.com/fd1az/oracle-resolver/pkg/ui/components"
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "done", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseStartup   Phase = "startup"   // Loading/connecting
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

var startupOrder = []string{"config", "rpc", "feeds", "journal"}

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	visits *components.VisitsComponent
	feeds  *components.FeedsComponent
	stats  *components.StatsComponent
	conns  *components.StatusComponent
	keys   KeyMap
	help   help.Model

	phase        Phase
	welcomeStart time.Time

	ready    bool
	quitting bool
	width    int
	height   int

	settings     SettingsMsg
	cycle        int
	cycleRunning bool
	cycleStart   time.Time
	// cleared is set once a visit in the current cycle passed the gate.
	cleared      bool
	lastUpdate   time.Time
	errors       []ErrorEntry // last 3
	logs         []string
	activityFeed []string

	startupComplete bool
	startupSteps    map[string]*StartupStep
	startupTime     time.Time
}

// New creates a new TUI model.
func New() Model {
	now := time.Now()
	return Model{
		visits:       components.NewVisitsComponent(50),
		feeds:        components.NewFeedsComponent(80),
		stats:        components.NewStatsComponent(),
		conns:        components.NewStatusComponent(),
		keys:         DefaultKeyMap(),
		help:         help.New(),
		phase:        PhaseWelcome,
		welcomeStart: now,
		logs:         make([]string, 0, 5),
		errors:       make([]ErrorEntry, 0, 3),
		activityFeed: make([]string, 0, 6),
		startupSteps: map[string]*StartupStep{
			"config":  {Name: "Loading configuration", Status: "pending"},
			"rpc":     {Name: "Connecting to RPC", Status: "pending"},
			"feeds":   {Name: "Starting feeds", Status: "pending"},
			"journal": {Name: "Opening journal", Status: "pending"},
		},
		startupTime: now,
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		// During welcome phase, any other key skips to startup
		if m.phase == PhaseWelcome {
			m = m.leaveWelcome()
			return m, tickCmd()
		}
		switch {
		case key.Matches(msg, m.keys.Clear):
			m.visits.Clear()
		case key.Matches(msg, m.keys.ClearErrors):
			m.errors = make([]ErrorEntry, 0, 3)
		case key.Matches(msg, m.keys.Up):
			m.visits.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.visits.ScrollDown()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m = m.leaveWelcome()
		}
		return m, tickCmd()

	case SettingsMsg:
		m.settings = msg
		m.feeds.SetThreshold(msg.Threshold)

	case CycleStartedMsg:
		m.cycle = msg.Summary.Number
		m.cycleRunning = true
		m.cleared = false
		m.cycleStart = msg.Summary.Started
		m.startupComplete = true
		m.activityFeed = addActivity(m.activityFeed, cycleLabel(msg.Summary.Number)+" started")
		m.lastUpdate = time.Now()

	case CycleFinishedMsg:
		m.cycleRunning = false
		st := m.stats.Stats()
		st.Cycles++
		st.LastCycle = msg.Summary.Duration
		m.stats.Update(st)
		m.activityFeed = addActivity(m.activityFeed, fmt.Sprintf("%s finished: %d visits in %s",
			cycleLabel(msg.Summary.Number), msg.Summary.Visits(), msg.Summary.Duration.Round(time.Millisecond)))
		m.lastUpdate = time.Now()

	case VisitMsg:
		m = m.applyVisit(msg.Visit)

	case ConnectionStatusMsg:
		m.conns.Update(components.ConnectionStatus{
			Name:       msg.Name,
			Connected:  msg.Connected,
			Latency:    msg.Latency,
			Detail:     msg.Detail,
			LastUpdate: time.Now(),
		})
		m.lastUpdate = time.Now()

	case ErrorMsg:
		m.logs = addLog(m.logs, "error", msg.Error.Error())
		m.errors = append(m.errors, ErrorEntry{
			Message:   msg.Error.Error(),
			Timestamp: time.Now(),
		})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)

	case StartupMsg:
		if step, ok := m.startupSteps[msg.Step]; ok {
			step.Status = msg.Status
		}
		if msg.Status == "failed" && msg.Message != "" {
			m.errors = append(m.errors, ErrorEntry{Message: msg.Step + ": " + msg.Message, Timestamp: time.Now()})
		}
		allDone := true
		for _, step := range m.startupSteps {
			if step.Status != "connected" && step.Status != "done" {
				allDone = false
				break
			}
		}
		if allDone {
			m.startupComplete = true
		}
	}

	return m, nil
}

func (m Model) leaveWelcome() Model {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	// Trigger callback directly (don't use Send() from within Update)
	if OnStartModules != nil {
		go OnStartModules()
	}
	return m
}

func (m Model) applyVisit(v domain.Visit) Model {
	row := components.VisitRow{
		Time:       v.Started.Format("15:04:05"),
		Cycle:      m.cycle,
		MarketID:   v.MarketID,
		Rule:       v.Rule,
		Outcome:    "-",
		Confidence: v.Decision.Confidence,
		Status:     string(v.Status),
		Resumed:    v.Resumed,
		Detail:     v.Rule,
	}
	if decided(v) {
		row.Outcome = v.Decision.Outcome.String()
	}
	switch {
	case v.Err != nil:
		row.Detail = v.Err.Error()
	case v.Result.MarketTx != (common.Hash{}):
		row.Detail = "tx " + shortHash(v.Result.MarketTx.Hex())
	}
	m.visits.Add(row)

	if v.Reading.Feed != "" {
		m.feeds.Update(components.FeedRow{
			Name:       v.Reading.Feed,
			Value:      v.Reading.Value.String(),
			Confidence: v.Reading.Confidence,
			Fallback:   v.Reading.IsFallback(),
			ObservedAt: v.Reading.ObservedAt.Format("15:04:05"),
		})
	}

	st := m.stats.Stats()
	st.Visits++
	switch v.Status {
	case domain.StatusResolved:
		st.Resolved++
		m.cleared = true
	case domain.StatusAlreadyResolved:
		st.AlreadyResolved++
		m.cleared = true
	case domain.StatusGated:
		st.Gated++
	case domain.StatusPending:
		st.Pending++
	case domain.StatusFailed:
		st.Failed++
		m.errors = append(m.errors, ErrorEntry{Message: v.String(), Timestamp: time.Now()})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}
	}
	m.stats.Update(st)

	m.activityFeed = addActivity(m.activityFeed, v.String())
	m.lastUpdate = time.Now()
	return m
}

// decided reports whether the visit carries an outcome, from a feed read or
// from the journal.
func decided(v domain.Visit) bool {
	if v.Reading.Feed != "" || v.Resumed {
		return true
	}
	return v.Status == domain.StatusSkipped || v.Status == domain.StatusPending
}

func cycleLabel(n int) string {
	if n == 0 {
		return "Startup pass"
	}
	return fmt.Sprintf("Cycle #%d", n)
}

func shortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:8] + "…" + h[len(h)-4:]
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	logs = append(logs, fmt.Sprintf("[%s] %s: %s", timestamp, level, message))
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// addActivity adds an activity message and returns the updated slice (keeps last 6).
func addActivity(feed []string, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	feed = append(feed, fmt.Sprintf("[%s] %s", timestamp, message))
	if len(feed) > 6 {
		feed = feed[len(feed)-6:]
	}
	return feed
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		if !m.startupComplete {
			return m.renderStartupScreen()
		}
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" Oracle Resolver "))
	b.WriteString("\n\n")

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	var leftContent strings.Builder
	leftContent.WriteString(m.feeds.View())
	leftContent.WriteString("\n\n")
	leftContent.WriteString(HeaderStyle.Render("CONNECTIONS"))
	leftContent.WriteString("\n")
	leftContent.WriteString(m.conns.View())
	leftContent.WriteString("\n")
	leftContent.WriteString(m.renderActivityFeed())
	leftCol := leftContent.String()

	rightCol := m.visits.View()

	if m.width > 120 {
		left := BoxStyle.Width(m.width*2/5 - 2).Render(leftCol)
		right := BoxStyle.Width(m.width*3/5 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		width := m.width - 4
		if width < 20 {
			width = 80
		}
		b.WriteString(BoxStyle.Width(width).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(width).Render(rightCol))
	}
	b.WriteString("\n\n")
	b.WriteString(m.stats.View())
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		errorStyle := lipgloss.NewStyle().Foreground(ColorDanger)
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(errorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) renderActivityFeed() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	cycleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("LIVE ACTIVITY"))
	sb.WriteString("\n\n")

	if len(m.activityFeed) == 0 {
		sb.WriteString(MutedValue.Render("  Waiting for the first cycle..."))
		return sb.String()
	}
	for _, activity := range m.activityFeed {
		if strings.Contains(activity, "Cycle #") || strings.Contains(activity, "Startup pass") {
			sb.WriteString(cycleStyle.Render("  " + activity))
		} else {
			sb.WriteString(MutedValue.Render("  " + activity))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	goldStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
	greenStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	elapsed := time.Since(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")

	logo := `
    ██████╗ ██████╗  █████╗  ██████╗██╗     ███████╗
   ██╔═══██╗██╔══██╗██╔══██╗██╔════╝██║     ██╔════╝
   ██║   ██║██████╔╝███████║██║     ██║     █████╗
   ██║   ██║██╔══██╗██╔══██║██║     ██║     ██╔══╝
   ╚██████╔╝██║  ██║██║  ██║╚██████╗███████╗███████╗
    ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝ ╚═════╝╚══════╝╚══════╝
`
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render("              R E S O L U T I O N   E N G I N E"))
	sb.WriteString("\n\n\n")
	sb.WriteString(goldStyle.Render("            Real-world facts, settled on-chain"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("                  Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("            Press any key to skip, or wait..."))
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) renderStartupScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	successStyle := lipgloss.NewStyle().Foreground(ColorSecondary)
	connectingStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	failedStyle := lipgloss.NewStyle().Foreground(ColorDanger)

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  Oracle Resolver"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	for _, k := range startupOrder {
		step, ok := m.startupSteps[k]
		if !ok {
			continue
		}

		var icon, statusText string
		var style lipgloss.Style
		switch step.Status {
		case "connected", "done":
			icon, statusText, style = "✓", "Ready", successStyle
		case "connecting":
			spinners := []string{"◐", "◓", "◑", "◒"}
			idx := int(time.Since(m.startupTime).Milliseconds()/200) % len(spinners)
			icon, statusText, style = spinners[idx], "Connecting...", connectingStyle
		case "failed":
			icon, statusText, style = "✗", "Failed", failedStyle
		default:
			icon, statusText, style = "○", "Pending", MutedValue
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			MutedValue.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	elapsed := time.Since(m.startupTime).Round(time.Second)
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n")
	for _, l := range m.logs {
		sb.WriteString(MutedValue.Render("  " + l))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	if m.cycleRunning {
		spinners := []string{"⟳", "◐", "◓", "◑", "◒"}
		idx := int(time.Now().UnixMilli()/100) % len(spinners)
		running := lipgloss.NewStyle().Foreground(ColorSecondary).Bold(true)
		parts = append(parts, running.Render(fmt.Sprintf("%s %s (%s)",
			spinners[idx], cycleLabel(m.cycle), time.Since(m.cycleStart).Round(time.Second))))
	} else {
		parts = append(parts, fmt.Sprintf("Idle after %s", strings.ToLower(cycleLabel(m.cycle))))
	}

	if m.settings.Interval > 0 {
		parts = append(parts, fmt.Sprintf("Every %s", m.settings.Interval))
	}
	parts = append(parts, GateStyle(m.cleared).Render(fmt.Sprintf("Gate: %d", m.settings.Threshold)))

	if m.settings.Account != "" {
		signer := StatusConnected.Render("● signer " + shortHash(m.settings.Account))
		if !m.settings.CanSign {
			signer = StatusReconnecting.Render("○ read-only")
		}
		parts = append(parts, signer)
	}

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		indicator := ""
		if ago < 2*time.Second {
			indicator = "▪"
		}
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago %s", ago, indicator)))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules should start.
// main sets it to begin loading modules.
var OnStartModules func()

// Run starts the Bubble Tea program.
func Run() error {
	Program = tea.NewProgram(New(), tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
	if _, ok := msg.(StartModulesMsg); ok && OnStartModules != nil {
		OnStartModules()
	}
}

package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// SlowLatency marks a reachable dependency as degraded.
const SlowLatency = 750 * time.Millisecond

// ConnectionStatus is the last known reachability of one dependency (RPC,
// journal, feeds).
type ConnectionStatus struct {
	Name       string
	Connected  bool
	Latency    time.Duration
	Detail     string
	LastUpdate time.Time
}

func (c ConnectionStatus) label() (string, lipgloss.Style) {
	switch {
	case !c.Connected:
		return "✗ unreachable", lipgloss.NewStyle().Foreground(lipgloss.Color("#F43F5E"))
	case c.Latency >= SlowLatency:
		return "◐ slow", lipgloss.NewStyle().Foreground(lipgloss.Color("#EAB308"))
	default:
		return "● ok", lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E"))
	}
}

// StatusComponent keeps dependencies in the order they were first reported.
type StatusComponent struct {
	order  []string
	byName map[string]ConnectionStatus
}

func NewStatusComponent() *StatusComponent {
	return &StatusComponent{byName: make(map[string]ConnectionStatus)}
}

// Update replaces the status of status.Name.
func (s *StatusComponent) Update(status ConnectionStatus) {
	if _, ok := s.byName[status.Name]; !ok {
		s.order = append(s.order, status.Name)
	}
	s.byName[status.Name] = status
}

// Get returns the last status reported for name.
func (s *StatusComponent) Get(name string) (ConnectionStatus, bool) {
	c, ok := s.byName[name]
	return c, ok
}

func (s *StatusComponent) View() string {
	if len(s.order) == 0 {
		return "  waiting for dependencies"
	}

	var b strings.Builder
	for _, name := range s.order {
		c := s.byName[name]
		text, style := c.label()
		fmt.Fprintf(&b, "  %-8s %s", c.Name, style.Render(text))
		if c.Connected && c.Latency > 0 {
			fmt.Fprintf(&b, " %s", c.Latency.Round(time.Millisecond))
		}
		if c.Detail != "" {
			b.WriteString(" " + c.Detail)
		}
		b.WriteString("\n")
	}
	return b.String()
}

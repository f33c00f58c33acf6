package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds loop totals for display.
type Stats struct {
	Cycles          int64
	Visits          int64
	Resolved        int64
	AlreadyResolved int64
	Gated           int64
	Pending         int64
	Failed          int64
	LastCycle       time.Duration
}

// StatsComponent renders loop statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update replaces the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// Stats returns the current statistics.
func (s *StatsComponent) Stats() Stats {
	return s.stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	failed := valueStyle.Render(fmt.Sprintf("%d", s.stats.Failed))
	if s.stats.Failed > 0 {
		failed = errorStyle.Render(fmt.Sprintf("%d", s.stats.Failed))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Cycles: %s  │  Visits: %s  │  Resolved: %s (+%s already)\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Cycles)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Visits)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Resolved)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.AlreadyResolved)),
		) +
		fmt.Sprintf("Gated: %s  │  Pending: %s  │  Failed: %s  │  Last cycle: %s",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Gated)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Pending)),
			failed,
			valueStyle.Render(s.stats.LastCycle.Round(time.Millisecond).String()),
		)
}

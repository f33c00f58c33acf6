package components

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// FeedRow is the latest reading of one feed.
type FeedRow struct {
	Name       string
	Value      string
	Confidence int
	Fallback   bool
	ObservedAt string
}

// FeedsComponent renders the latest reading per feed.
type FeedsComponent struct {
	rows      map[string]FeedRow
	threshold int
}

// NewFeedsComponent creates a feeds component. Confidences below threshold
// are highlighted.
func NewFeedsComponent(threshold int) *FeedsComponent {
	return &FeedsComponent{
		rows:      make(map[string]FeedRow),
		threshold: threshold,
	}
}

// SetThreshold changes the highlighted confidence threshold.
func (f *FeedsComponent) SetThreshold(threshold int) {
	f.threshold = threshold
}

// Update stores a reading.
func (f *FeedsComponent) Update(row FeedRow) {
	f.rows[row.Name] = row
}

// View renders the feeds table.
func (f *FeedsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	lowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("FEEDS (gate ≥ %d)", f.threshold)))
	b.WriteString("\n\n")

	if len(f.rows) == 0 {
		b.WriteString(dimStyle.Render("  Waiting for feed readings..."))
		return b.String()
	}

	names := make([]string, 0, len(f.rows))
	for name := range f.rows {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteString(fmt.Sprintf("  %-10s  %14s  %5s  %-8s  %s\n", "Feed", "Value", "Conf", "Source", "Seen"))
	b.WriteString(dimStyle.Render("  " + strings.Repeat("─", 52)))
	b.WriteString("\n")

	for _, name := range names {
		row := f.rows[name]
		confStyle := okStyle
		if row.Confidence < f.threshold {
			confStyle = lowStyle
		}
		source := "live"
		if row.Fallback {
			source = lowStyle.Render("fallback")
		}
		b.WriteString(fmt.Sprintf("  %-10s  %14s  %s  %-8s  %s\n",
			row.Name,
			row.Value,
			confStyle.Render(fmt.Sprintf("%5d", row.Confidence)),
			source,
			dimStyle.Render(row.ObservedAt),
		))
	}
	return b.String()
}

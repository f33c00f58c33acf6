// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// VisitRow is one market visit in the list.
type VisitRow struct {
	Time       string
	Cycle      int
	MarketID   uint64
	Rule       string
	Outcome    string
	Confidence int
	Status     string
	Detail     string
	Resumed    bool
}

// VisitsComponent renders the most recent visits, newest first.
type VisitsComponent struct {
	rows    []VisitRow
	maxRows int
	offset  int
	visible int
}

// NewVisitsComponent creates a visits component keeping maxRows entries.
func NewVisitsComponent(maxRows int) *VisitsComponent {
	return &VisitsComponent{
		rows:    make([]VisitRow, 0, maxRows),
		maxRows: maxRows,
		visible: 10,
	}
}

// Add prepends a visit.
func (v *VisitsComponent) Add(row VisitRow) {
	v.rows = append([]VisitRow{row}, v.rows...)
	if len(v.rows) > v.maxRows {
		v.rows = v.rows[:v.maxRows]
	}
	if v.offset > 0 {
		v.offset++
	}
}

// Clear removes all visits.
func (v *VisitsComponent) Clear() {
	v.rows = make([]VisitRow, 0, v.maxRows)
	v.offset = 0
}

// Len returns the number of stored visits.
func (v *VisitsComponent) Len() int {
	return len(v.rows)
}

// ScrollUp moves the window toward newer visits.
func (v *VisitsComponent) ScrollUp() {
	if v.offset > 0 {
		v.offset--
	}
}

// ScrollDown moves the window toward older visits.
func (v *VisitsComponent) ScrollDown() {
	if v.offset < len(v.rows)-v.visible {
		v.offset++
	}
}

// View renders the visits table.
func (v *VisitsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("MARKET VISITS (last %d)", v.maxRows)))
	b.WriteString("\n\n")

	if len(v.rows) == 0 {
		b.WriteString(mutedStyle.Render("  No markets visited yet..."))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("  %-8s  %5s  %6s  %-7s  %4s  %-17s  %s\n",
		"Time", "Cycle", "Market", "Outcome", "Conf", "Status", "Detail"))
	b.WriteString(mutedStyle.Render("  " + strings.Repeat("─", 72)))
	b.WriteString("\n")

	end := v.offset + v.visible
	if end > len(v.rows) {
		end = len(v.rows)
	}
	for _, row := range v.rows[v.offset:end] {
		status := row.Status
		if row.Resumed {
			status += "*"
		}
		b.WriteString(fmt.Sprintf("  %-8s  %5d  %6d  %-7s  %4d  %s  %s\n",
			row.Time,
			row.Cycle,
			row.MarketID,
			row.Outcome,
			row.Confidence,
			StatusStyle(row.Status).Render(fmt.Sprintf("%-17s", status)),
			mutedStyle.Render(truncate(row.Detail, 40)),
		))
	}
	if len(v.rows) > v.visible {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d-%d of %d", v.offset+1, end, len(v.rows))))
	}
	return b.String()
}

// StatusStyle colours a visit status.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "resolved", "already_resolved":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	case "failed":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	case "gated", "pending":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

package ui

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	ColorPrimary   = lipgloss.Color("#0EA5E9") // sky
	ColorSecondary = lipgloss.Color("#22C55E") // yes / healthy
	ColorDanger    = lipgloss.Color("#F43F5E") // no / failed
	ColorWarning   = lipgloss.Color("#EAB308") // gated / pending
	ColorMuted     = lipgloss.Color("#64748B")
	ColorBorder    = lipgloss.Color("#334155")
)

var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0F172A")).
			Background(ColorPrimary).
			Padding(0, 2)

	StatusConnected = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true)

	StatusReconnecting = lipgloss.NewStyle().
				Foreground(ColorWarning).
				Bold(true)

	MutedValue = lipgloss.NewStyle().
			Foreground(ColorMuted)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Padding(0, 1)
)

// GateStyle colours the confidence gate: amber while nothing has cleared it
// in the current cycle, green once something has.
func GateStyle(cleared bool) lipgloss.Style {
	if cleared {
		return lipgloss.NewStyle().Foreground(ColorSecondary)
	}
	return lipgloss.NewStyle().Foreground(ColorWarning)
}

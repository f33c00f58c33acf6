package reporter

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/oracle-resolver/business/resolver/app"
	"github.com/fd1az/oracle-resolver/business/resolver/domain"
	"github.com/fd1az/oracle-resolver/pkg/ui"
)

var _ app.Reporter = (*TUIReporter)(nil)

// TUIReporter implements Reporter for the Bubble Tea dashboard.
type TUIReporter struct {
	send func(tea.Msg)
}

// NewTUIReporter creates a reporter that sends to the running ui.Program.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{send: ui.Send}
}

// NewTUIReporterWith sends messages through send instead of the global
// program.
func NewTUIReporterWith(send func(tea.Msg)) *TUIReporter {
	return &TUIReporter{send: send}
}

// Start is a no-op; the program is started by main.
func (r *TUIReporter) Start(ctx context.Context) error {
	return nil
}

// CycleStarted sends a CycleStartedMsg.
func (r *TUIReporter) CycleStarted(s domain.CycleSummary) {
	r.send(ui.CycleStartedMsg{Summary: s})
}

// Report sends a VisitMsg.
func (r *TUIReporter) Report(v domain.Visit) {
	r.send(ui.VisitMsg{Visit: v})
}

// CycleFinished sends a CycleFinishedMsg.
func (r *TUIReporter) CycleFinished(s domain.CycleSummary) {
	r.send(ui.CycleFinishedMsg{Summary: s})
}

// Stop sends a closing log line.
func (r *TUIReporter) Stop() error {
	r.send(ui.LogMsg{Level: "info", Message: "resolver loop stopped"})
	return nil
}

// Package ui provides the Bubble Tea dashboard for the oracle resolver.
package ui

import (
	"time"

	"github.com/fd1az/oracle-resolver/business/resolver/domain"
)

// Message types for TUI updates

// VisitMsg is sent after every market visit.
type VisitMsg struct {
	Visit domain.Visit
}

// CycleStartedMsg is sent before the first visit of a cycle.
type CycleStartedMsg struct {
	Summary domain.CycleSummary
}

// CycleFinishedMsg is sent after the last visit of a cycle.
type CycleFinishedMsg struct {
	Summary domain.CycleSummary
}

// ConnectionStatusMsg is sent when a dependency's reachability changes.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Latency   time.Duration
	Detail    string
}

// SettingsMsg describes the running loop.
type SettingsMsg struct {
	Threshold int
	Interval  time.Duration
	Markets   []uint64
	Account   string
	Market    string
	CanSign   bool
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // config, rpc, feeds, journal
	Status  string // "connecting", "connected", "done", "failed"
	Message string
}

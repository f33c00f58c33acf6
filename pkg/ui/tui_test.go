package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"

	feeddomain "github.com/fd1az/oracle-resolver/business/feed/domain"
	resolutiondomain "github.com/fd1az/oracle-resolver/business/resolution/domain"
	"github.com/fd1az/oracle-resolver/business/resolver/domain"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func visit(id uint64, status domain.Status, err error) domain.Visit {
	return domain.Visit{
		MarketID: id,
		Rule:     "bitcoin >= 100000",
		Reading: feeddomain.Reading{
			Feed:       "bitcoin",
			Value:      feeddomain.NumberValue(67000),
			Confidence: 90,
			Source:     feeddomain.SourceLive,
			ObservedAt: time.Now(),
		},
		Decision: resolutiondomain.Resolution{MarketID: id, Outcome: resolutiondomain.OutcomeNo, Confidence: 90},
		Status:   status,
		Err:      err,
		Started:  time.Now(),
	}
}

func TestModel_QuitKey(t *testing.T) {
	m := New()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if got := next.(Model).View(); !strings.Contains(got, "Goodbye") {
		t.Errorf("View() = %q", got)
	}
}

func TestModel_AnyKeyLeavesWelcome(t *testing.T) {
	m := New()
	if m.phase != PhaseWelcome {
		t.Fatalf("phase = %s", m.phase)
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	if m.phase != PhaseStartup {
		t.Errorf("phase = %s, want %s", m.phase, PhaseStartup)
	}
}

func TestModel_StartupCompletes(t *testing.T) {
	m := New()
	for _, step := range startupOrder[:len(startupOrder)-1] {
		m = update(t, m, StartupMsg{Step: step, Status: "connected"})
	}
	if m.startupComplete {
		t.Fatal("startup complete before the journal step")
	}
	m = update(t, m, StartupMsg{Step: "journal", Status: "done"})
	if !m.startupComplete {
		t.Error("startup not complete after all steps")
	}
}

func TestModel_StartupFailureRecordsError(t *testing.T) {
	m := update(t, New(), StartupMsg{Step: "rpc", Status: "failed", Message: "dial tcp: refused"})
	if len(m.errors) != 1 || m.errors[0].Message != "rpc: dial tcp: refused" {
		t.Errorf("errors = %+v", m.errors)
	}
}

func TestModel_VisitsUpdateStats(t *testing.T) {
	m := New()
	m = update(t, m, CycleStartedMsg{Summary: domain.NewCycleSummary("c1", 1, time.Now())})

	resolved := visit(0, domain.StatusResolved, nil)
	resolved.Result = domain.SubmissionResult{MarketTx: common.HexToHash("0xabc")}
	m = update(t, m, VisitMsg{Visit: resolved})
	m = update(t, m, VisitMsg{Visit: visit(1, domain.StatusGated, nil)})
	m = update(t, m, VisitMsg{Visit: visit(2, domain.StatusFailed, errors.New("reverted"))})

	summary := domain.NewCycleSummary("c1", 1, time.Now())
	summary.Duration = 5 * time.Second
	m = update(t, m, CycleFinishedMsg{Summary: summary})

	st := m.stats.Stats()
	if st.Visits != 3 || st.Resolved != 1 || st.Gated != 1 || st.Failed != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.Cycles != 1 || st.LastCycle != 5*time.Second {
		t.Errorf("cycle stats = %+v", st)
	}
	if m.visits.Len() != 3 {
		t.Errorf("visit rows = %d, want 3", m.visits.Len())
	}
	if len(m.errors) != 1 {
		t.Errorf("errors = %d, want 1", len(m.errors))
	}
	if m.cycleRunning {
		t.Error("cycle still running after CycleFinishedMsg")
	}
	if !m.cleared {
		t.Error("gate not marked cleared after a resolution")
	}

	m = update(t, m, CycleStartedMsg{Summary: domain.NewCycleSummary("c2", 2, time.Now())})
	if m.cleared {
		t.Error("gate still marked cleared in a new cycle")
	}
}

func TestModel_ErrorsKeepLastThree(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m = update(t, m, ErrorMsg{Error: errors.New("boom")})
	}
	if len(m.errors) != 3 {
		t.Errorf("errors = %d, want 3", len(m.errors))
	}
	if len(m.logs) != 5 {
		t.Errorf("logs = %d, want 5", len(m.logs))
	}
}

func TestModel_ClearVisits(t *testing.T) {
	m := update(t, New(), tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	m = update(t, m, VisitMsg{Visit: visit(0, domain.StatusGated, nil)})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	if m.visits.Len() != 0 {
		t.Errorf("visit rows = %d after clear", m.visits.Len())
	}
}

func TestShortHash(t *testing.T) {
	if got := shortHash("0x1234"); got != "0x1234" {
		t.Errorf("got %q", got)
	}
	h := "0x" + strings.Repeat("ab", 32)
	if got := shortHash(h); got != "0xababab…abab" {
		t.Errorf("got %q", got)
	}
}

func TestModel_ConnectionStatus(t *testing.T) {
	m := update(t, New(), ConnectionStatusMsg{Name: "rpc", Connected: true, Latency: 40 * time.Millisecond})
	m = update(t, m, ConnectionStatusMsg{Name: "journal", Connected: true, Detail: "oracle.db"})
	m = update(t, m, ConnectionStatusMsg{Name: "rpc", Connected: false, Detail: "timeout"})

	rpc, ok := m.conns.Get("rpc")
	if !ok || rpc.Connected || rpc.Detail != "timeout" {
		t.Errorf("rpc = %+v, %v", rpc, ok)
	}
	view := m.conns.View()
	if strings.Index(view, "rpc") > strings.Index(view, "journal") {
		t.Errorf("rpc should stay first:\n%s", view)
	}
	if !strings.Contains(view, "unreachable") {
		t.Errorf("view = %q", view)
	}
}

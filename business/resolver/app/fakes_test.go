package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	chaindomain "github.com/fd1az/oracle-resolver/business/chain/domain"
	feeddomain "github.com/fd1az/oracle-resolver/business/feed/domain"
	"github.com/fd1az/oracle-resolver/business/resolver/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

// fakeChain behaves like the two contracts: once a market is resolved every
// further write is rejected as already resolved.
type fakeChain struct {
	mu    sync.Mutex
	calls []string
	seq   byte

	resolved map[uint64]bool
	totals   map[uint64][2]int64

	submitErr  error
	resolveErr error
	// waitErr fails WaitMined for the transaction sent by the n-th call
	// (1-based).
	waitErr map[int]error
	status  map[common.Hash]chaindomain.TxStatus

	// When set, WaitMined for the attestation signals entered and blocks
	// until release is closed or ctx ends.
	entered chan struct{}
	release chan struct{}

	pending map[common.Hash]func()
	order   map[common.Hash]int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		resolved: make(map[uint64]bool),
		totals:   make(map[uint64][2]int64),
		waitErr:  make(map[int]error),
		status:   make(map[common.Hash]chaindomain.TxStatus),
		pending:  make(map[common.Hash]func()),
		order:    make(map[common.Hash]int),
	}
}

func (f *fakeChain) nextHash() common.Hash {
	f.seq++
	return common.BytesToHash([]byte{0xee, f.seq})
}

func (f *fakeChain) SubmitResolution(_ context.Context, id uint64, outcome uint8, confidence int) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("submit:%d:%d:%d", id, outcome, confidence))
	if f.submitErr != nil {
		return common.Hash{}, f.submitErr
	}
	if f.resolved[id] {
		return common.Hash{}, apperror.New(apperror.CodeAlreadyResolved)
	}
	h := f.nextHash()
	f.order[h] = len(f.calls)
	f.pending[h] = func() {}
	return h, nil
}

func (f *fakeChain) ResolveMarket(_ context.Context, id uint64, outcome uint8) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("resolve:%d:%d", id, outcome))
	if f.resolveErr != nil {
		return common.Hash{}, f.resolveErr
	}
	if f.resolved[id] {
		return common.Hash{}, apperror.New(apperror.CodeAlreadyResolved)
	}
	h := f.nextHash()
	f.order[h] = len(f.calls)
	f.pending[h] = func() { f.resolved[id] = true }
	return h, nil
}

func (f *fakeChain) WaitMined(ctx context.Context, hash common.Hash) (chaindomain.Receipt, error) {
	f.mu.Lock()
	n := f.order[hash]
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil && n == 1 {
		close(entered)
		select {
		case <-release:
		case <-ctx.Done():
			return chaindomain.Receipt{TxHash: hash, Status: chaindomain.TxPending},
				apperror.New(apperror.CodeAwaitingConfirmation, apperror.WithCause(ctx.Err()))
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.waitErr[n]; err != nil {
		return chaindomain.Receipt{TxHash: hash, Status: chaindomain.TxReverted}, err
	}
	if apply, ok := f.pending[hash]; ok {
		apply()
		delete(f.pending, hash)
	}
	return chaindomain.Receipt{TxHash: hash, BlockNumber: 100, Status: chaindomain.TxConfirmed}, nil
}

func (f *fakeChain) TxStatus(_ context.Context, hash common.Hash) (chaindomain.TxStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.status[hash]; ok {
		return s, nil
	}
	return chaindomain.TxUnknown, nil
}

func (f *fakeChain) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type mapJournal struct {
	mu      sync.Mutex
	commits map[uint64]domain.Commit
}

func newMapJournal() *mapJournal {
	return &mapJournal{commits: make(map[uint64]domain.Commit)}
}

func (j *mapJournal) Get(_ context.Context, id uint64) (domain.Commit, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.commits[id]
	return c, ok, nil
}

func (j *mapJournal) Put(_ context.Context, c domain.Commit) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.commits[c.MarketID] = c
	return nil
}

func (j *mapJournal) Delete(_ context.Context, id uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.commits, id)
	return nil
}

func (j *mapJournal) List(_ context.Context) ([]domain.Commit, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.Commit, 0, len(j.commits))
	for _, c := range j.commits {
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].MarketID < out[b].MarketID })
	return out, nil
}

func (j *mapJournal) Close() error { return nil }

type fakeFeeds struct {
	mu       sync.Mutex
	readings map[string]feeddomain.Reading
	fetched  []string
}

func newFakeFeeds(readings map[string]feeddomain.Reading) *fakeFeeds {
	return &fakeFeeds{readings: readings}
}

func (f *fakeFeeds) Fetch(_ context.Context, name string) feeddomain.Reading {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, name)
	r := f.readings[name]
	r.Feed = name
	return r
}

func (f *fakeFeeds) Has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.readings[name]
	return ok
}

func (f *fakeFeeds) set(name string, r feeddomain.Reading) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readings[name] = r
}

type recordingReporter struct {
	mu       sync.Mutex
	started  []int
	finished []domain.CycleSummary
	visits   []domain.Visit
}

func (r *recordingReporter) Start(context.Context) error { return nil }

func (r *recordingReporter) CycleStarted(s domain.CycleSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, s.Number)
}

func (r *recordingReporter) Report(v domain.Visit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visits = append(r.visits, v)
}

func (r *recordingReporter) CycleFinished(s domain.CycleSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, s)
}

func (r *recordingReporter) Stop() error { return nil }

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func number(v float64, confidence int) feeddomain.Reading {
	return feeddomain.Reading{Value: feeddomain.NumberValue(v), Confidence: confidence, Source: feeddomain.SourceLive}
}

func boolean(v bool, confidence int) feeddomain.Reading {
	return feeddomain.Reading{Value: feeddomain.BoolValue(v), Confidence: confidence, Source: feeddomain.SourceLive}
}

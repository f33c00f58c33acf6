// Package memory is an in-process commit journal. It does not survive a
// restart; use it for dry runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fd1az/oracle-resolver/business/resolver/app"
	"github.com/fd1az/oracle-resolver/business/resolver/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
)

var _ app.Journal = (*Journal)(nil)

// Journal keeps commits in a map.
type Journal struct {
	mu      sync.RWMutex
	commits map[uint64]domain.Commit
}

// New creates an empty journal.
func New() *Journal {
	return &Journal{commits: make(map[uint64]domain.Commit)}
}

func (j *Journal) Get(_ context.Context, marketID uint64) (domain.Commit, bool, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	c, ok := j.commits[marketID]
	return c, ok, nil
}

func (j *Journal) Put(_ context.Context, c domain.Commit) error {
	if !c.Stage.Valid() {
		return apperror.Validation(apperror.CodeJournalError, "invalid stage "+string(c.Stage))
	}
	j.mu.Lock()
	j.commits[c.MarketID] = c
	j.mu.Unlock()
	return nil
}

func (j *Journal) Delete(_ context.Context, marketID uint64) error {
	j.mu.Lock()
	delete(j.commits, marketID)
	j.mu.Unlock()
	return nil
}

func (j *Journal) List(_ context.Context) ([]domain.Commit, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]domain.Commit, 0, len(j.commits))
	for _, c := range j.commits {
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].MarketID < out[b].MarketID })
	return out, nil
}

func (j *Journal) Close() error { return nil }

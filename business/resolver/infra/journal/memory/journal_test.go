package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	resolutiondomain "github.com/fd1az/oracle-resolver/business/resolution/domain"
	"github.com/fd1az/oracle-resolver/business/resolver/domain"
	"github.com/fd1az/oracle-resolver/business/resolver/infra/journal/memory"
	"github.com/fd1az/oracle-resolver/internal/apperror"
)

func TestJournal_PutGet(t *testing.T) {
	j := memory.New()
	defer j.Close()
	ctx := context.Background()

	_, ok, err := j.Get(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	want := domain.Commit{
		MarketID:   2,
		Outcome:    resolutiondomain.OutcomeNo,
		Confidence: 88,
		Stage:      domain.StageAttesting,
		AttestTx:   common.HexToHash("0xaa"),
		UpdatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, j.Put(ctx, want))

	got, ok, err := j.Get(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestJournal_UpsertAdvancesStage(t *testing.T) {
	j := memory.New()
	ctx := context.Background()

	c := domain.Commit{MarketID: 0, Outcome: resolutiondomain.OutcomeYes, Confidence: 95, Stage: domain.StageAttesting, AttestTx: common.HexToHash("0x01")}
	require.NoError(t, j.Put(ctx, c))

	c.Stage = domain.StageResolving
	c.ResolveTx = common.HexToHash("0x02")
	require.NoError(t, j.Put(ctx, c))

	got, ok, err := j.Get(ctx, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StageResolving, got.Stage)
	assert.Equal(t, common.HexToHash("0x01"), got.AttestTx)
	assert.Equal(t, common.HexToHash("0x02"), got.ResolveTx)
}

func TestJournal_ListOrderedAndDelete(t *testing.T) {
	j := memory.New()
	ctx := context.Background()

	for _, id := range []uint64{2, 0, 1} {
		require.NoError(t, j.Put(ctx, domain.Commit{MarketID: id, Stage: domain.StageAttested}))
	}

	list, err := j.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uint64{0, 1, 2}, []uint64{list[0].MarketID, list[1].MarketID, list[2].MarketID})

	require.NoError(t, j.Delete(ctx, 1))
	require.NoError(t, j.Delete(ctx, 7))

	list, err = j.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	_, ok, err := j.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJournal_RejectsUnknownStage(t *testing.T) {
	j := memory.New()

	err := j.Put(context.Background(), domain.Commit{MarketID: 1, Stage: "bogus"})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeJournalError, apperror.GetCode(err))

	_, ok, _ := j.Get(context.Background(), 1)
	assert.False(t, ok)
}

func TestJournal_ConcurrentWriters(t *testing.T) {
	j := memory.New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for id := uint64(0); id < 16; id++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, j.Put(ctx, domain.Commit{MarketID: id, Stage: domain.StageResolved}))
			_, _, _ = j.Get(ctx, id)
			_, _ = j.List(ctx)
		}()
	}
	wg.Wait()

	list, err := j.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 16)
}

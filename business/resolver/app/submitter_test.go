package app

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	chaindomain "github.com/fd1az/oracle-resolver/business/chain/domain"
	resolutiondomain "github.com/fd1az/oracle-resolver/business/resolution/domain"
	"github.com/fd1az/oracle-resolver/business/resolver/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
)

func newTestSubmitter(t *testing.T, chain *fakeChain, journal *mapJournal, grace time.Duration) *Submitter {
	t.Helper()
	s, err := NewSubmitter(chain, journal, grace, &mockLogger{})
	if err != nil {
		t.Fatalf("NewSubmitter: %v", err)
	}
	return s
}

func yes(id uint64, confidence int) resolutiondomain.Resolution {
	return resolutiondomain.Resolution{MarketID: id, Outcome: resolutiondomain.OutcomeYes, Confidence: confidence}
}

func TestSubmit_AttestsThenResolves(t *testing.T) {
	chain := newFakeChain()
	journal := newMapJournal()
	s := newTestSubmitter(t, chain, journal, time.Minute)

	res, err := s.Submit(context.Background(), yes(0, 90))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	want := []string{"submit:0:0:90", "resolve:0:0"}
	if got := chain.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if res.OracleTx == (common.Hash{}) || res.MarketTx == (common.Hash{}) {
		t.Errorf("result missing hashes: %+v", res)
	}
	if !chain.resolved[0] {
		t.Error("market not resolved on chain")
	}

	c, ok, _ := journal.Get(context.Background(), 0)
	if !ok || c.Stage != domain.StageResolved {
		t.Errorf("journal = %+v, %v; want resolved", c, ok)
	}
	if c.AttestTx != res.OracleTx || c.ResolveTx != res.MarketTx {
		t.Errorf("journal hashes = %s/%s, want %s/%s", c.AttestTx.Hex(), c.ResolveTx.Hex(), res.OracleTx.Hex(), res.MarketTx.Hex())
	}
}

func TestSubmit_NoResolutionAfterFailedAttestation(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeChain)
	}{
		{
			name: "broadcast fails",
			setup: func(c *fakeChain) {
				c.submitErr = apperror.New(apperror.CodeGasEstimationFailed, apperror.WithCause(errors.New("execution reverted: not oracle")))
			},
		},
		{
			name: "attestation reverts",
			setup: func(c *fakeChain) {
				c.waitErr[1] = apperror.New(apperror.CodeTransactionReverted, apperror.WithContext("not oracle"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			tt.setup(chain)
			journal := newMapJournal()
			s := newTestSubmitter(t, chain, journal, time.Minute)

			_, err := s.Submit(context.Background(), yes(1, 85))
			if !apperror.HasCode(err, apperror.CodeChainWriteFailed) {
				t.Fatalf("err = %v, want CHAIN_WRITE_FAILED", err)
			}
			for _, call := range chain.Calls() {
				if call[:7] == "resolve" {
					t.Fatalf("resolveMarket called after failed attestation: %v", chain.Calls())
				}
			}
			if _, ok, _ := journal.Get(context.Background(), 1); ok {
				t.Error("journal entry left behind")
			}
		})
	}
}

func TestSubmit_ResolutionFailureKeepsAttestation(t *testing.T) {
	chain := newFakeChain()
	chain.waitErr[2] = apperror.New(apperror.CodeTransactionReverted)
	journal := newMapJournal()
	s := newTestSubmitter(t, chain, journal, time.Minute)

	_, err := s.Submit(context.Background(), yes(2, 92))
	if !apperror.HasCode(err, apperror.CodeChainWriteFailed) {
		t.Fatalf("err = %v, want CHAIN_WRITE_FAILED", err)
	}

	c, ok, _ := journal.Get(context.Background(), 2)
	if !ok || c.Stage != domain.StageAttested {
		t.Fatalf("journal = %+v, %v; want attested", c, ok)
	}
	if c.ResolveTx != (common.Hash{}) {
		t.Errorf("resolve tx kept: %s", c.ResolveTx.Hex())
	}
}

func TestSubmit_AlreadyResolvedIsBenign(t *testing.T) {
	chain := newFakeChain()
	chain.resolved[2] = true
	chain.totals[2] = [2]int64{500, 300}
	journal := newMapJournal()
	s := newTestSubmitter(t, chain, journal, time.Minute)

	_, err := s.Submit(context.Background(), yes(2, 92))
	if !apperror.HasCode(err, apperror.CodeAlreadyResolved) {
		t.Fatalf("err = %v, want ALREADY_RESOLVED", err)
	}
	if apperror.HasCode(err, apperror.CodeChainWriteFailed) {
		t.Error("already resolved reported as a write failure")
	}
	want := []string{"submit:2:0:92", "resolve:2:0"}
	if got := chain.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if chain.totals[2] != [2]int64{500, 300} || !chain.resolved[2] {
		t.Errorf("market state changed: %v %v", chain.totals[2], chain.resolved[2])
	}

	c, ok, _ := journal.Get(context.Background(), 2)
	if !ok || c.Stage != domain.StageResolved {
		t.Errorf("journal = %+v, %v; want resolved", c, ok)
	}
}

func TestSubmit_OracleAlreadyAttestedStillResolvesMarket(t *testing.T) {
	tests := []struct {
		name      string
		submitErr error
		waitErr   error
		wantCalls []string
	}{
		{
			name:      "attestation rejected",
			submitErr: apperror.New(apperror.CodeAlreadyResolved),
			wantCalls: []string{"submit:0:0:90", "resolve:0:0"},
		},
		{
			name:      "attestation reverted",
			waitErr:   apperror.New(apperror.CodeAlreadyResolved),
			wantCalls: []string{"submit:0:0:90", "resolve:0:0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			chain.submitErr = tt.submitErr
			if tt.waitErr != nil {
				chain.waitErr[1] = tt.waitErr
			}
			journal := newMapJournal()
			s := newTestSubmitter(t, chain, journal, time.Minute)

			res, err := s.Submit(context.Background(), yes(0, 90))
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if got := chain.Calls(); !reflect.DeepEqual(got, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", got, tt.wantCalls)
			}
			if !chain.resolved[0] {
				t.Error("market not resolved on chain")
			}
			if res.MarketTx == (common.Hash{}) {
				t.Error("result missing market tx")
			}

			c, ok, _ := journal.Get(context.Background(), 0)
			if !ok || c.Stage != domain.StageResolved {
				t.Errorf("journal = %+v, %v; want resolved", c, ok)
			}
			if c.Outcome != resolutiondomain.OutcomeYes || c.ResolveTx != res.MarketTx {
				t.Errorf("journal = %+v, want yes with market tx %s", c, res.MarketTx.Hex())
			}
		})
	}
}

func TestSubmit_OracleAlreadyAttestedKeepsAttestedOnResolveFailure(t *testing.T) {
	chain := newFakeChain()
	chain.submitErr = apperror.New(apperror.CodeAlreadyResolved)
	chain.resolveErr = apperror.New(apperror.CodeEthereumRPCError)
	journal := newMapJournal()
	s := newTestSubmitter(t, chain, journal, time.Minute)

	_, err := s.Submit(context.Background(), yes(0, 90))
	if !apperror.HasCode(err, apperror.CodeChainWriteFailed) {
		t.Fatalf("err = %v, want CHAIN_WRITE_FAILED", err)
	}

	c, ok, _ := journal.Get(context.Background(), 0)
	if !ok || c.Stage != domain.StageAttested {
		t.Fatalf("journal = %+v, %v; want attested", c, ok)
	}

	plan, err := s.Inspect(context.Background(), 0)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if plan.Action != ActionResume {
		t.Errorf("action = %d, want resume", plan.Action)
	}
}

func TestSubmit_InFlightMarketIsRejected(t *testing.T) {
	chain := newFakeChain()
	s := newTestSubmitter(t, chain, newMapJournal(), time.Minute)

	if !s.claim(3) {
		t.Fatal("first claim failed")
	}
	_, err := s.Submit(context.Background(), yes(3, 90))
	if !apperror.HasCode(err, apperror.CodeAwaitingConfirmation) {
		t.Fatalf("err = %v, want AWAITING_CONFIRMATION", err)
	}
	if len(chain.Calls()) != 0 {
		t.Errorf("calls = %v, want none", chain.Calls())
	}
	s.release(3)
	if !s.claim(3) {
		t.Error("claim after release failed")
	}
}

func TestSubmit_ShutdownCompletesBothWrites(t *testing.T) {
	chain := newFakeChain()
	chain.entered = make(chan struct{})
	chain.release = make(chan struct{})
	journal := newMapJournal()
	s := newTestSubmitter(t, chain, journal, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, yes(0, 90))
		done <- err
	}()

	<-chain.entered
	cancel()
	close(chain.release)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Submit did not return")
	}

	want := []string{"submit:0:0:90", "resolve:0:0"}
	if got := chain.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if c, _, _ := journal.Get(context.Background(), 0); c.Stage != domain.StageResolved {
		t.Errorf("stage = %s, want resolved", c.Stage)
	}
}

func TestSubmit_GraceExpiryLeavesAttestingEntry(t *testing.T) {
	chain := newFakeChain()
	chain.entered = make(chan struct{})
	chain.release = make(chan struct{})
	journal := newMapJournal()
	s := newTestSubmitter(t, chain, journal, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, yes(0, 90))
		done <- err
	}()

	<-chain.entered
	cancel()

	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Submit did not return after the grace period")
	}
	if !apperror.HasCode(err, apperror.CodeAwaitingConfirmation) {
		t.Fatalf("err = %v, want AWAITING_CONFIRMATION", err)
	}
	if got := chain.Calls(); len(got) != 1 {
		t.Errorf("calls = %v, want only the attestation", got)
	}
	if c, _, _ := journal.Get(context.Background(), 0); c.Stage != domain.StageAttesting {
		t.Errorf("stage = %s, want attesting", c.Stage)
	}
}

func TestInspect(t *testing.T) {
	attestTx := common.HexToHash("0xa1")
	resolveTx := common.HexToHash("0xb2")

	tests := []struct {
		name      string
		commit    *domain.Commit
		status    map[common.Hash]chaindomain.TxStatus
		want      Action
		wantStage domain.Stage // "" means no entry afterwards
	}{
		{
			name: "no entry",
			want: ActionDecide,
		},
		{
			name:      "resolved",
			commit:    &domain.Commit{MarketID: 1, Stage: domain.StageResolved},
			want:      ActionSkip,
			wantStage: domain.StageResolved,
		},
		{
			name:      "attested",
			commit:    &domain.Commit{MarketID: 1, Stage: domain.StageAttested, AttestTx: attestTx},
			want:      ActionResume,
			wantStage: domain.StageAttested,
		},
		{
			name:      "attesting pending",
			commit:    &domain.Commit{MarketID: 1, Stage: domain.StageAttesting, AttestTx: attestTx},
			status:    map[common.Hash]chaindomain.TxStatus{attestTx: chaindomain.TxPending},
			want:      ActionWait,
			wantStage: domain.StageAttesting,
		},
		{
			name:      "attesting confirmed",
			commit:    &domain.Commit{MarketID: 1, Stage: domain.StageAttesting, AttestTx: attestTx},
			status:    map[common.Hash]chaindomain.TxStatus{attestTx: chaindomain.TxConfirmed},
			want:      ActionResume,
			wantStage: domain.StageAttested,
		},
		{
			name:   "attesting reverted",
			commit: &domain.Commit{MarketID: 1, Stage: domain.StageAttesting, AttestTx: attestTx},
			status: map[common.Hash]chaindomain.TxStatus{attestTx: chaindomain.TxReverted},
			want:   ActionDecide,
		},
		{
			name:   "attesting dropped",
			commit: &domain.Commit{MarketID: 1, Stage: domain.StageAttesting, AttestTx: attestTx},
			want:   ActionDecide,
		},
		{
			name:      "resolving pending",
			commit:    &domain.Commit{MarketID: 1, Stage: domain.StageResolving, AttestTx: attestTx, ResolveTx: resolveTx},
			status:    map[common.Hash]chaindomain.TxStatus{resolveTx: chaindomain.TxPending},
			want:      ActionWait,
			wantStage: domain.StageResolving,
		},
		{
			name:      "resolving confirmed",
			commit:    &domain.Commit{MarketID: 1, Stage: domain.StageResolving, AttestTx: attestTx, ResolveTx: resolveTx},
			status:    map[common.Hash]chaindomain.TxStatus{resolveTx: chaindomain.TxConfirmed},
			want:      ActionConfirmed,
			wantStage: domain.StageResolved,
		},
		{
			name:      "resolving reverted",
			commit:    &domain.Commit{MarketID: 1, Stage: domain.StageResolving, AttestTx: attestTx, ResolveTx: resolveTx},
			status:    map[common.Hash]chaindomain.TxStatus{resolveTx: chaindomain.TxReverted},
			want:      ActionResume,
			wantStage: domain.StageAttested,
		},
		{
			name:   "unknown stage",
			commit: &domain.Commit{MarketID: 1, Stage: "bogus"},
			want:   ActionDecide,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			for h, st := range tt.status {
				chain.status[h] = st
			}
			journal := newMapJournal()
			if tt.commit != nil {
				journal.commits[tt.commit.MarketID] = *tt.commit
			}
			s := newTestSubmitter(t, chain, journal, time.Minute)

			plan, err := s.Inspect(context.Background(), 1)
			if err != nil {
				t.Fatalf("Inspect: %v", err)
			}
			if plan.Action != tt.want {
				t.Errorf("action = %d, want %d", plan.Action, tt.want)
			}

			c, ok, _ := journal.Get(context.Background(), 1)
			switch {
			case tt.wantStage == "" && ok:
				t.Errorf("entry kept: %+v", c)
			case tt.wantStage != "" && (!ok || c.Stage != tt.wantStage):
				t.Errorf("stage = %q (exists %v), want %q", c.Stage, ok, tt.wantStage)
			}
			if len(chain.Calls()) != 0 {
				t.Errorf("Inspect wrote to chain: %v", chain.Calls())
			}
		})
	}
}

func TestResume_SendsOnlyResolution(t *testing.T) {
	chain := newFakeChain()
	journal := newMapJournal()
	attested := domain.Commit{
		MarketID:   2,
		Outcome:    resolutiondomain.OutcomeNo,
		Confidence: 88,
		Stage:      domain.StageAttested,
		AttestTx:   common.HexToHash("0xa1"),
	}
	journal.commits[2] = attested
	s := newTestSubmitter(t, chain, journal, time.Minute)

	res, err := s.Resume(context.Background(), attested)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if want := []string{"resolve:2:1"}; !reflect.DeepEqual(chain.Calls(), want) {
		t.Errorf("calls = %v, want %v", chain.Calls(), want)
	}
	if res.OracleTx != attested.AttestTx {
		t.Errorf("oracle tx = %s, want journaled %s", res.OracleTx.Hex(), attested.AttestTx.Hex())
	}
	if c, _, _ := journal.Get(context.Background(), 2); c.Stage != domain.StageResolved {
		t.Errorf("stage = %s, want resolved", c.Stage)
	}
}

// Package sqlite stores the commit journal in SQLite (pure Go, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite"

	resolutiondomain "github.com/fd1az/oracle-resolver/business/resolution/domain"
	"github.com/fd1az/oracle-resolver/business/resolver/app"
	"github.com/fd1az/oracle-resolver/business/resolver/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
)

const schema = `
CREATE TABLE IF NOT EXISTS commits (
    market_id  INTEGER PRIMARY KEY,
    outcome    INTEGER NOT NULL,
    confidence INTEGER NOT NULL,
    stage      TEXT    NOT NULL,
    attest_tx  TEXT    NOT NULL DEFAULT '',
    resolve_tx TEXT    NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL
);
`

var _ app.Journal = (*Journal)(nil)

// Journal is the SQLite commit journal.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal at path. ":memory:" is accepted.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, journalErr("open "+path, err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, journalErr("apply schema", err)
	}
	return &Journal{db: db}, nil
}

// Get returns the commit for a market.
func (j *Journal) Get(ctx context.Context, marketID uint64) (domain.Commit, bool, error) {
	row := j.db.QueryRowContext(ctx,
		`SELECT market_id, outcome, confidence, stage, attest_tx, resolve_tx, updated_at
		 FROM commits WHERE market_id = ?`, int64(marketID))

	c, err := scanCommit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Commit{}, false, nil
	}
	if err != nil {
		return domain.Commit{}, false, journalErr(fmt.Sprintf("get market %d", marketID), err)
	}
	return c, true, nil
}

// Put upserts the commit.
func (j *Journal) Put(ctx context.Context, c domain.Commit) error {
	if !c.Stage.Valid() {
		return apperror.Validation(apperror.CodeJournalError, "invalid stage "+string(c.Stage))
	}
	updated := c.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO commits (market_id, outcome, confidence, stage, attest_tx, resolve_tx, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(market_id) DO UPDATE SET
			outcome    = excluded.outcome,
			confidence = excluded.confidence,
			stage      = excluded.stage,
			attest_tx  = excluded.attest_tx,
			resolve_tx = excluded.resolve_tx,
			updated_at = excluded.updated_at`,
		int64(c.MarketID), int(c.Outcome), c.Confidence, string(c.Stage),
		hashText(c.AttestTx), hashText(c.ResolveTx), updated.UnixNano(),
	)
	if err != nil {
		return journalErr(fmt.Sprintf("put market %d", c.MarketID), err)
	}
	return nil
}

// Delete removes the commit for a market.
func (j *Journal) Delete(ctx context.Context, marketID uint64) error {
	if _, err := j.db.ExecContext(ctx, `DELETE FROM commits WHERE market_id = ?`, int64(marketID)); err != nil {
		return journalErr(fmt.Sprintf("delete market %d", marketID), err)
	}
	return nil
}

// List returns every commit ordered by market id.
func (j *Journal) List(ctx context.Context) ([]domain.Commit, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT market_id, outcome, confidence, stage, attest_tx, resolve_tx, updated_at
		 FROM commits ORDER BY market_id`)
	if err != nil {
		return nil, journalErr("list", err)
	}
	defer rows.Close()

	var out []domain.Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, journalErr("list", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, journalErr("list", err)
	}
	return out, nil
}

// Ping checks the database answers; used by the readiness check.
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCommit(s scanner) (domain.Commit, error) {
	var (
		id         int64
		outcome    int
		confidence int
		stage      string
		attestTx   string
		resolveTx  string
		updated    int64
	)
	if err := s.Scan(&id, &outcome, &confidence, &stage, &attestTx, &resolveTx, &updated); err != nil {
		return domain.Commit{}, err
	}
	return domain.Commit{
		MarketID:   uint64(id),
		Outcome:    resolutiondomain.Outcome(outcome),
		Confidence: confidence,
		Stage:      domain.Stage(stage),
		AttestTx:   textHash(attestTx),
		ResolveTx:  textHash(resolveTx),
		UpdatedAt:  time.Unix(0, updated).UTC(),
	}, nil
}

func hashText(h common.Hash) string {
	if h == (common.Hash{}) {
		return ""
	}
	return h.Hex()
}

func textHash(s string) common.Hash {
	if s == "" {
		return common.Hash{}
	}
	return common.HexToHash(s)
}

func journalErr(op string, err error) error {
	return apperror.Internal(apperror.CodeJournalError, "journal "+op, err)
}

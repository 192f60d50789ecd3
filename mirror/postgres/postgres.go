// Package postgres mirrors provisioned elections into PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/Rdilshan/e-voting-web-sub000/log"
	"github.com/Rdilshan/e-voting-web-sub000/types"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const (
	insertElectionSQL = `INSERT INTO elections
    (id, title, description, start_time, end_time, merkle_root, tx_hash, candidates, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`

	insertVoterSQL = `INSERT INTO election_voters (election_id, position, identifier, wallet)
VALUES ($1, $2, $3, $4)
ON CONFLICT (election_id, position) DO NOTHING`

	countVotersSQL = `SELECT count(*) FROM election_voters WHERE election_id = $1`
)

// Pool is the subset of *pgxpool.Pool used by the mirror.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Postgres implements mirror.Mirror.
type Postgres struct {
	pool Pool
}

// New connects to dsn, applies the embedded migrations and returns the
// mirror.
func New(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	log.Infow("postgres mirror ready", "host", pool.Config().ConnConfig.Host)
	return NewWithPool(pool), nil
}

// NewWithPool returns a mirror over an existing pool. No migration is run.
func NewWithPool(pool Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate brings the schema up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetBaseFS(embeddedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose up: %w", err)
	}
	return nil
}

func numeric(id types.ElectionID) pgtype.Numeric {
	return pgtype.Numeric{Int: id.BigInt(), Valid: true}
}

// InsertElection inserts the election row. An existing row is kept.
func (p *Postgres) InsertElection(ctx context.Context, rec *types.ElectionRecord) error {
	candidates, err := json.Marshal(rec.Candidates)
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	if _, err := p.pool.Exec(ctx, insertElectionSQL,
		numeric(rec.ID),
		rec.Title,
		rec.Description,
		rec.StartTime,
		rec.EndTime,
		rec.MerkleRoot.Hex(),
		rec.TxHash.Hex(),
		candidates,
		rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert election %s: %w", rec.ID, err)
	}
	return nil
}

// InsertVoterWallets inserts one row per voter, in commitment order, in a
// single transaction.
func (p *Postgres) InsertVoterWallets(ctx context.Context, electionID types.ElectionID, voters []types.VoterWallet) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	id := numeric(electionID)
	for i, v := range voters {
		if _, err := tx.Exec(ctx, insertVoterSQL, id, i, v.Identifier, v.Wallet.Hex()); err != nil {
			if rerr := tx.Rollback(ctx); rerr != nil {
				log.Warnw("rollback failed", "error", rerr.Error())
			}
			return fmt.Errorf("insert voter %d of election %s: %w", i, electionID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit voters of election %s: %w", electionID, err)
	}
	return nil
}

// VoterCount returns the number of mirrored voters of an election.
func (p *Postgres) VoterCount(ctx context.Context, electionID types.ElectionID) (int64, error) {
	var n int64
	if err := p.pool.QueryRow(ctx, countVotersSQL, numeric(electionID)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count voters of election %s: %w", electionID, err)
	}
	return n, nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

package reserve

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ederziomek/real-digital-token/internal/infra"
)

const (
	uniqueViolation         = "23505"
	reservesPrimaryKey      = "reserves_pkey"
	mintReferenceConstraint = "reserve_entries_mint_reference"
)

const schema = `
CREATE TABLE IF NOT EXISTS reserves (
    address           TEXT PRIMARY KEY,
    bump              SMALLINT NOT NULL,
    authority         TEXT NOT NULL,
    pending_authority TEXT NOT NULL DEFAULT '',
    mint              TEXT NOT NULL,
    decimals          SMALLINT NOT NULL,
    total_supply      NUMERIC(20,0) NOT NULL,
    brl_reserve       NUMERIC(20,0) NOT NULL,
    total_minted      NUMERIC(20,0) NOT NULL,
    total_burned      NUMERIC(20,0) NOT NULL,
    mint_limit        NUMERIC(20,0) NOT NULL,
    is_paused         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at        TIMESTAMPTZ NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS reserve_entries (
    id           UUID PRIMARY KEY,
    seq          BIGSERIAL,
    reserve      TEXT NOT NULL REFERENCES reserves (address),
    kind         TEXT NOT NULL,
    actor        TEXT NOT NULL,
    amount       NUMERIC(20,0) NOT NULL DEFAULT 0,
    account      TEXT NOT NULL DEFAULT '',
    reference    TEXT NOT NULL DEFAULT '',
    total_supply NUMERIC(20,0) NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS reserve_entries_mint_reference
    ON reserve_entries (reserve, reference) WHERE kind = 'mint' AND reference <> '';
CREATE INDEX IF NOT EXISTS reserve_entries_reserve_seq ON reserve_entries (reserve, seq DESC);`

const reserveColumns = `address, bump, authority, pending_authority, mint, decimals,
    total_supply::text, brl_reserve::text, total_minted::text, total_burned::text, mint_limit::text,
    is_paused, created_at, updated_at`

// PostgresStore persists reserves in PostgreSQL. Each transition holds a row
// lock on the reserve for the duration of one database transaction, and that
// transaction is attached to the context handed to the TxFunc.
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore constructs a Postgres-backed reserve store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the reserve tables when they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure reserve schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, address string) (Reserve, error) {
	row := s.db.QueryRow(ctx, `SELECT `+reserveColumns+` FROM reserves WHERE address = $1`, address)
	r, err := scanReserve(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reserve{}, ErrNotInitialized
	}
	return r, err
}

func (s *PostgresStore) Create(ctx context.Context, address string, fn TxFunc) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reserves WHERE address = $1)`, address).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrAlreadyInitialized
	}

	return s.run(ctx, tx, address, Reserve{}, true, fn)
}

func (s *PostgresStore) Update(ctx context.Context, address string, fn TxFunc) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT `+reserveColumns+` FROM reserves WHERE address = $1 FOR UPDATE`, address)
	current, err := scanReserve(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotInitialized
		}
		return err
	}

	return s.run(ctx, tx, address, current, false, fn)
}

func (s *PostgresStore) Entries(ctx context.Context, address string, limit int) ([]Entry, error) {
	const query = `
        SELECT id::text, reserve, kind, actor, amount::text, account, reference, total_supply::text, created_at
        FROM reserve_entries
        WHERE reserve = $1
        ORDER BY seq DESC
        LIMIT $2`
	rows, err := s.db.Query(ctx, query, address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e              Entry
			kind           string
			amount, supply string
		)
		if err := rows.Scan(&e.ID, &e.Reserve, &kind, &e.Actor, &amount, &e.Account, &e.Reference, &supply, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = EntryKind(kind)
		if e.Amount, err = strconv.ParseUint(amount, 10, 64); err != nil {
			return nil, fmt.Errorf("parse entry amount: %w", err)
		}
		if e.TotalSupply, err = strconv.ParseUint(supply, 10, 64); err != nil {
			return nil, fmt.Errorf("parse entry supply: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) run(ctx context.Context, tx pgx.Tx, address string, current Reserve, create bool, fn TxFunc) error {
	ptx := &postgresTx{ctx: ctx, tx: tx, address: address, current: current}
	if err := fn(infra.ContextWithTx(ctx, tx), ptx); err != nil {
		return err
	}
	if err := ptx.flush(create); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type postgresTx struct {
	ctx     context.Context
	tx      pgx.Tx
	address string
	current Reserve
	written bool
	staged  []Entry
}

func (t *postgresTx) Reserve() Reserve { return t.current }

func (t *postgresTx) Put(r Reserve) {
	t.current = r
	t.written = true
}

func (t *postgresTx) Record(e Entry) error {
	if !isReferenced(e) {
		t.staged = append(t.staged, e)
		return nil
	}
	for _, staged := range t.staged {
		if isReferenced(staged) && staged.Reference == e.Reference {
			return ErrDuplicateReference
		}
	}
	const query = `SELECT EXISTS (
        SELECT 1 FROM reserve_entries WHERE reserve = $1 AND kind = 'mint' AND reference = $2)`
	var used bool
	if err := t.tx.QueryRow(t.ctx, query, t.address, e.Reference).Scan(&used); err != nil {
		return err
	}
	if used {
		return ErrDuplicateReference
	}
	t.staged = append(t.staged, e)
	return nil
}

func (t *postgresTx) flush(create bool) error {
	if t.written {
		r := t.current
		args := []any{
			t.address, int16(r.Bump), r.Authority, r.PendingAuthority, r.Mint, int16(r.Decimals),
			u64(r.TotalSupply), u64(r.BRLReserve), u64(r.TotalMinted), u64(r.TotalBurned), u64(r.MintLimit),
			r.Paused, r.CreatedAt, r.UpdatedAt,
		}
		query := `
            UPDATE reserves SET bump = $2, authority = $3, pending_authority = $4, mint = $5, decimals = $6,
                total_supply = $7::text::numeric, brl_reserve = $8::text::numeric, total_minted = $9::text::numeric,
                total_burned = $10::text::numeric, mint_limit = $11::text::numeric, is_paused = $12,
                created_at = $13, updated_at = $14
            WHERE address = $1`
		if create {
			query = `
                INSERT INTO reserves (address, bump, authority, pending_authority, mint, decimals,
                    total_supply, brl_reserve, total_minted, total_burned, mint_limit, is_paused, created_at, updated_at)
                VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8::text::numeric, $9::text::numeric, $10::text::numeric, $11::text::numeric, $12, $13, $14)`
		}
		if _, err := t.tx.Exec(t.ctx, query, args...); err != nil {
			return mapConstraint(err)
		}
	}

	for _, e := range t.staged {
		id, err := uuid.Parse(e.ID)
		if err != nil {
			return fmt.Errorf("parse entry id: %w", err)
		}
		const insert = `
            INSERT INTO reserve_entries (id, reserve, kind, actor, amount, account, reference, total_supply, created_at)
            VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $8::text::numeric, $9)`
		if _, err := t.tx.Exec(t.ctx, insert, id, t.address, string(e.Kind), e.Actor, u64(e.Amount), e.Account, e.Reference, u64(e.TotalSupply), e.CreatedAt); err != nil {
			return mapConstraint(err)
		}
	}
	return nil
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case reservesPrimaryKey:
		return ErrAlreadyInitialized
	case mintReferenceConstraint:
		return ErrDuplicateReference
	}
	return err
}

func scanReserve(row pgx.Row) (Reserve, error) {
	var r Reserve
	var bump, decimals int16
	var supply, reserve, minted, burned, mintCap string
	var createdAt, updatedAt time.Time
	if err := row.Scan(&r.Address, &bump, &r.Authority, &r.PendingAuthority, &r.Mint, &decimals,
		&supply, &reserve, &minted, &burned, &mintCap, &r.Paused, &createdAt, &updatedAt); err != nil {
		return Reserve{}, err
	}
	r.Bump = uint8(bump)
	r.Decimals = uint8(decimals)
	r.CreatedAt = createdAt.UTC()
	r.UpdatedAt = updatedAt.UTC()

	for _, f := range []struct {
		dst *uint64
		src string
	}{
		{&r.TotalSupply, supply},
		{&r.BRLReserve, reserve},
		{&r.TotalMinted, minted},
		{&r.TotalBurned, burned},
		{&r.MintLimit, mintCap},
	} {
		v, err := strconv.ParseUint(f.src, 10, 64)
		if err != nil {
			return Reserve{}, fmt.Errorf("parse reserve counter: %w", err)
		}
		*f.dst = v
	}
	return r, nil
}

func u64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

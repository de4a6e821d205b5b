package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ederziomek/real-digital-token/internal/infra"
	"github.com/ederziomek/real-digital-token/internal/reserve"
)

const schema = `
CREATE TABLE IF NOT EXISTS token_mints (
    id         UUID PRIMARY KEY,
    authority  TEXT NOT NULL,
    decimals   SMALLINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS token_accounts (
    id         UUID PRIMARY KEY,
    code       TEXT NOT NULL UNIQUE,
    mint       UUID NOT NULL REFERENCES token_mints (id),
    owner      TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS token_transactions (
    id         UUID PRIMARY KEY,
    mint       UUID NOT NULL REFERENCES token_mints (id),
    kind       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS token_entries (
    id             UUID PRIMARY KEY,
    transaction_id UUID NOT NULL REFERENCES token_transactions (id),
    account_id     UUID NOT NULL REFERENCES token_accounts (id),
    amount         BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS token_entries_account ON token_entries (account_id);`

// PostgresService persists mints and accounts in PostgreSQL as a double-entry
// ledger. Every mint owns an issuance account whose balance is the negated
// supply. When the context carries a transaction (see infra.ContextWithTx) the
// service works inside a savepoint of it.
type PostgresService struct {
	db *pgxpool.Pool
}

var _ Service = (*PostgresService)(nil)

// NewPostgres constructs a Postgres-backed token service.
func NewPostgres(db *pgxpool.Pool) *PostgresService {
	return &PostgresService{db: db}
}

// EnsureSchema creates the token tables when they do not exist.
func (s *PostgresService) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure token schema: %w", err)
	}
	return nil
}

func (s *PostgresService) begin(ctx context.Context) (pgx.Tx, error) {
	if tx, ok := infra.TxFromContext(ctx); ok {
		return tx.Begin(ctx)
	}
	return s.db.BeginTx(ctx, pgx.TxOptions{})
}

// conn reads through the caller's transaction when there is one, so lookups
// see movements that are not committed yet.
func (s *PostgresService) conn(ctx context.Context) interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
} {
	if tx, ok := infra.TxFromContext(ctx); ok {
		return tx
	}
	return s.db
}

// CreateMint registers a new mint controlled by the capability's address.
func (s *PostgresService) CreateMint(ctx context.Context, decimals uint8, authority reserve.Capability) (string, error) {
	if authority.IsZero() {
		return "", ErrAuthorityMismatch
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	mintID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO token_mints (id, authority, decimals) VALUES ($1, $2, $3)`,
		mintID, authority.Authority(), int16(decimals)); err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO token_accounts (id, code, mint, owner) VALUES ($1, $2, $3, $4)`,
		uuid.New(), issuanceCode(mintID.String()), mintID, authority.Authority()); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return mintID.String(), nil
}

// MintTo credits destination and debits the mint's issuance account.
func (s *PostgresService) MintTo(ctx context.Context, mint, destination string, authority reserve.Capability, amount uint64) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	mintAuthority, err := mintAuthorityFor(ctx, tx, mint)
	if err != nil {
		return err
	}
	if authority.IsZero() || authority.Authority() != mintAuthority {
		return ErrAuthorityMismatch
	}

	dest, err := lockAccount(ctx, tx, destination)
	if err != nil {
		return err
	}
	if dest.Mint != mint {
		return ErrMintMismatch
	}
	issuanceID, err := accountIDForCode(ctx, tx, issuanceCode(mint))
	if err != nil {
		return err
	}

	if err := post(ctx, tx, mint, "mint", issuanceID, uuid.MustParse(dest.ID), int64(amount)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// BurnFrom debits source on behalf of its owner and credits the issuance account.
func (s *PostgresService) BurnFrom(ctx context.Context, mint, source, owner string, amount uint64) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	src, err := lockAccount(ctx, tx, source)
	if err != nil {
		return err
	}
	if src.Mint != mint {
		return ErrMintMismatch
	}
	if src.Owner != owner {
		return ErrOwnerMismatch
	}

	srcID := uuid.MustParse(src.ID)
	balance, err := balanceForAccount(ctx, tx, srcID)
	if err != nil {
		return err
	}
	if balance < int64(amount) {
		return ErrInsufficientFunds
	}

	issuanceID, err := accountIDForCode(ctx, tx, issuanceCode(mint))
	if err != nil {
		return err
	}

	if err := post(ctx, tx, mint, "burn", srcID, issuanceID, int64(amount)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// OpenAccount guarantees an account exists for owner under mint.
func (s *PostgresService) OpenAccount(ctx context.Context, mint, owner string) (Account, error) {
	mintID, err := uuid.Parse(mint)
	if err != nil {
		return Account{}, ErrMintNotFound
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return Account{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := mintAuthorityFor(ctx, tx, mint); err != nil {
		return Account{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO token_accounts (id, code, mint, owner) VALUES ($1, $2, $3, $4)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), holderCode(mint, owner), mintID, owner); err != nil {
		return Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Account{}, err
	}

	return s.AccountFor(ctx, mint, owner)
}

// Account returns the account and its summed balance.
func (s *PostgresService) Account(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrAccountNotFound
	}
	return s.queryAccount(ctx, `a.id = $1`, accountID)
}

// AccountFor returns the owner's account under mint.
func (s *PostgresService) AccountFor(ctx context.Context, mint, owner string) (Account, error) {
	return s.queryAccount(ctx, `a.code = $1`, holderCode(mint, owner))
}

// Mint returns the mint and its circulating supply.
func (s *PostgresService) Mint(ctx context.Context, id string) (Mint, error) {
	mintID, err := uuid.Parse(id)
	if err != nil {
		return Mint{}, ErrMintNotFound
	}
	const query = `
        SELECT m.authority, m.decimals, m.created_at, COALESCE(-SUM(e.amount), 0)
        FROM token_mints m
        LEFT JOIN token_accounts a ON a.code = 'issuance:' || m.id::text
        LEFT JOIN token_entries e ON e.account_id = a.id
        WHERE m.id = $1
        GROUP BY m.id`
	m := Mint{ID: id}
	var decimals int16
	var supply int64
	if err := s.conn(ctx).QueryRow(ctx, query, mintID).Scan(&m.Authority, &decimals, &m.CreatedAt, &supply); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mint{}, ErrMintNotFound
		}
		return Mint{}, err
	}
	m.Decimals = uint8(decimals)
	m.Supply = uint64(supply)
	return m, nil
}

// Supply returns the circulating supply of mint.
func (s *PostgresService) Supply(ctx context.Context, mint string) (uint64, error) {
	m, err := s.Mint(ctx, mint)
	return m.Supply, err
}

func (s *PostgresService) queryAccount(ctx context.Context, where string, arg any) (Account, error) {
	query := `
        SELECT a.id::text, a.mint::text, a.owner, a.created_at, COALESCE(SUM(e.amount), 0)
        FROM token_accounts a
        LEFT JOIN token_entries e ON e.account_id = a.id
        WHERE ` + where + ` AND a.code LIKE 'holder:%'
        GROUP BY a.id`
	var (
		acct      Account
		balance   int64
		createdAt time.Time
	)
	if err := s.conn(ctx).QueryRow(ctx, query, arg).Scan(&acct.ID, &acct.Mint, &acct.Owner, &createdAt, &balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	acct.CreatedAt = createdAt.UTC()
	acct.Balance = uint64(balance)
	return acct, nil
}

func post(ctx context.Context, tx pgx.Tx, mint, kind string, from, to uuid.UUID, amount int64) error {
	txID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO token_transactions (id, mint, kind) VALUES ($1, $2, $3)`, txID, uuid.MustParse(mint), kind); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO token_entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`, uuid.New(), txID, from, -amount); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO token_entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`, uuid.New(), txID, to, amount); err != nil {
		return err
	}
	return nil
}

func mintAuthorityFor(ctx context.Context, tx pgx.Tx, mint string) (string, error) {
	mintID, err := uuid.Parse(mint)
	if err != nil {
		return "", ErrMintNotFound
	}
	var authority string
	if err := tx.QueryRow(ctx, `SELECT authority FROM token_mints WHERE id = $1`, mintID).Scan(&authority); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrMintNotFound
		}
		return "", err
	}
	return authority, nil
}

func lockAccount(ctx context.Context, tx pgx.Tx, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrAccountNotFound
	}
	const query = `SELECT id::text, mint::text, owner FROM token_accounts WHERE id = $1 AND code LIKE 'holder:%' FOR UPDATE`
	var acct Account
	if err := tx.QueryRow(ctx, query, accountID).Scan(&acct.ID, &acct.Mint, &acct.Owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return acct, nil
}

func accountIDForCode(ctx context.Context, tx pgx.Tx, code string) (uuid.UUID, error) {
	const query = `SELECT id FROM token_accounts WHERE code = $1 FOR UPDATE`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, query, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("account %s not found", code)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func balanceForAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM token_entries WHERE account_id = $1`
	var balance int64
	if err := tx.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed vault store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the vault tables.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS vault_balances (
			actor      VARCHAR(42) PRIMARY KEY,
			balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS vault_entries (
			id         BIGSERIAL PRIMARY KEY,
			actor      VARCHAR(42) NOT NULL,
			type       VARCHAR(20) NOT NULL,
			amount     BIGINT NOT NULL,
			reference  VARCHAR(128),
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_vault_entries_actor ON vault_entries(actor);

		CREATE TABLE IF NOT EXISTS vault_items (
			owner      VARCHAR(42) NOT NULL,
			collection VARCHAR(128) NOT NULL,
			item_id    VARCHAR(128) NOT NULL,
			PRIMARY KEY (collection, item_id)
		);
		CREATE INDEX IF NOT EXISTS idx_vault_items_owner ON vault_items(owner);
	`)
	return err
}

func (p *PostgresStore) Balance(ctx context.Context, actor string) (uint64, error) {
	var balance int64
	err := p.db.QueryRowContext(ctx,
		`SELECT balance FROM vault_balances WHERE actor = $1`, actor,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(balance), nil
}

func (p *PostgresStore) Credit(ctx context.Context, actor string, amount uint64, entryType, reference string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := creditTx(ctx, tx, actor, amount); err != nil {
		return err
	}
	if err := recordTx(ctx, tx, actor, entryType, amount, reference); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) Debit(ctx context.Context, actor string, amount uint64, entryType, reference string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := debitTx(ctx, tx, actor, amount); err != nil {
		return err
	}
	if err := recordTx(ctx, tx, actor, entryType, amount, reference); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) Move(ctx context.Context, from, to string, amount uint64, entryType, reference string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := debitTx(ctx, tx, from, amount); err != nil {
		return err
	}
	if err := creditTx(ctx, tx, to, amount); err != nil {
		return err
	}
	// Both parties get an audit entry so recipient history shows winnings
	// and refunds, not just outflows.
	if err := recordTx(ctx, tx, from, entryType, amount, reference); err != nil {
		return err
	}
	if err := recordTx(ctx, tx, to, entryType, amount, reference); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) History(ctx context.Context, actor string, limit int) ([]*Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, actor, type, amount, COALESCE(reference, ''), created_at
		FROM vault_entries WHERE actor = $1
		ORDER BY id DESC LIMIT $2
	`, actor, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var id int64
		var amount int64
		if err := rows.Scan(&id, &e.Actor, &e.Type, &amount, &e.Reference, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ID = fmt.Sprintf("entry_%d", id)
		e.Amount = uint64(amount)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (p *PostgresStore) AddItem(ctx context.Context, owner, collection, itemID string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO vault_items (owner, collection, item_id) VALUES ($1, $2, $3)
		ON CONFLICT (collection, item_id) DO NOTHING
	`, owner, collection, itemID)
	return err
}

func (p *PostgresStore) MoveItem(ctx context.Context, owner, newOwner, collection, itemID string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE vault_items SET owner = $1
		WHERE owner = $2 AND collection = $3 AND item_id = $4
	`, newOwner, owner, collection, itemID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (p *PostgresStore) Items(ctx context.Context, owner, collection string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT item_id FROM vault_items WHERE owner = $1 AND collection = $2
		ORDER BY item_id
	`, owner, collection)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// creditTx upserts a balance increment inside a transaction.
func creditTx(ctx context.Context, tx *sql.Tx, actor string, amount uint64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO vault_balances (actor, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (actor) DO UPDATE
		SET balance = vault_balances.balance + $2, updated_at = NOW()
	`, actor, int64(amount))
	return err
}

// debitTx decrements a balance, relying on the row lock plus the balance
// guard to reject overdrafts.
func debitTx(ctx context.Context, tx *sql.Tx, actor string, amount uint64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE vault_balances
		SET balance = balance - $2, updated_at = NOW()
		WHERE actor = $1 AND balance >= $2
	`, actor, int64(amount))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func recordTx(ctx context.Context, tx *sql.Tx, actor, entryType string, amount uint64, reference string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO vault_entries (actor, type, amount, reference)
		VALUES ($1, $2, $3, $4)
	`, actor, entryType, int64(amount), reference)
	return err
}

package engine

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL. ClaimPending leans on
// DELETE ... RETURNING so the remove-if-present is a single atomic
// statement even across multiple engine instances.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed engine store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the engine tables.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS game_pending (
			nonce        VARCHAR(64) PRIMARY KEY,
			game         VARCHAR(16) NOT NULL,
			requester    VARCHAR(42) NOT NULL,
			escrowed     BIGINT NOT NULL,
			seed         BYTEA NOT NULL,
			move         SMALLINT NOT NULL DEFAULT 0,
			participants TEXT[] NOT NULL DEFAULT '{}',
			wheel_id     VARCHAR(64) NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_game_pending_requester ON game_pending(requester, created_at);

		CREATE TABLE IF NOT EXISTS game_completed (
			nonce      VARCHAR(64) PRIMARY KEY,
			game       VARCHAR(16) NOT NULL,
			requester  VARCHAR(42) NOT NULL,
			outcome    VARCHAR(16) NOT NULL,
			random     TEXT NOT NULL,
			winner     VARCHAR(42) NOT NULL DEFAULT '',
			payout     BIGINT NOT NULL DEFAULT 0,
			prize_id   VARCHAR(64) NOT NULL DEFAULT '',
			item_id    VARCHAR(128) NOT NULL DEFAULT '',
			settled_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_game_completed_game ON game_completed(game, settled_at DESC);

		CREATE TABLE IF NOT EXISTS wheel_prizes (
			wheel_id   VARCHAR(64) NOT NULL,
			position   INT NOT NULL,
			prize_id   VARCHAR(64) NOT NULL,
			kind       VARCHAR(16) NOT NULL,
			amount     BIGINT NOT NULL DEFAULT 0,
			stock      INT NOT NULL,
			collection VARCHAR(128) NOT NULL DEFAULT '',
			items      TEXT[] NOT NULL DEFAULT '{}',
			PRIMARY KEY (wheel_id, position)
		);
	`)
	return err
}

func (p *PostgresStore) InsertPending(ctx context.Context, req *PendingRequest) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO game_pending (nonce, game, requester, escrowed, seed, move, participants, wheel_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, req.Nonce, string(req.Game), req.Requester, int64(req.Escrowed), req.Seed,
		int16(req.Move), pq.Array(req.Participants), req.WheelID, req.CreatedAt)
	return err
}

func (p *PostgresStore) GetPending(ctx context.Context, nonce string) (*PendingRequest, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT nonce, game, requester, escrowed, seed, move, participants, wheel_id, created_at
		FROM game_pending WHERE nonce = $1
	`, nonce)
	req, err := scanPending(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	return req, err
}

func (p *PostgresStore) ClaimPending(ctx context.Context, nonce string) (*PendingRequest, bool, error) {
	row := p.db.QueryRowContext(ctx, `
		DELETE FROM game_pending WHERE nonce = $1
		RETURNING nonce, game, requester, escrowed, seed, move, participants, wheel_id, created_at
	`, nonce)
	req, err := scanPending(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return req, true, nil
}

func (p *PostgresStore) ActorNonces(ctx context.Context, actor string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT nonce FROM game_pending WHERE requester = $1 ORDER BY created_at, nonce
	`, actor)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var nonces []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		nonces = append(nonces, n)
	}
	return nonces, rows.Err()
}

func (p *PostgresStore) Actors(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT DISTINCT requester FROM game_pending`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var actors []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		actors = append(actors, a)
	}
	return actors, rows.Err()
}

func (p *PostgresStore) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM game_pending`).Scan(&n)
	return n, err
}

func (p *PostgresStore) InsertCompleted(ctx context.Context, rec *CompletedRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO game_completed (nonce, game, requester, outcome, random, winner, payout, prize_id, item_id, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.Nonce, string(rec.Game), rec.Requester, string(rec.Outcome), rec.Random,
		rec.Winner, int64(rec.Payout), rec.PrizeID, rec.ItemID, rec.SettledAt)
	return err
}

func (p *PostgresStore) GetCompleted(ctx context.Context, nonce string) (*CompletedRecord, error) {
	rec := &CompletedRecord{}
	var payout int64
	err := p.db.QueryRowContext(ctx, `
		SELECT nonce, game, requester, outcome, random, winner, payout, prize_id, item_id, settled_at
		FROM game_completed WHERE nonce = $1
	`, nonce).Scan(&rec.Nonce, &rec.Game, &rec.Requester, &rec.Outcome, &rec.Random,
		&rec.Winner, &payout, &rec.PrizeID, &rec.ItemID, &rec.SettledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Payout = uint64(payout)
	return rec, nil
}

func (p *PostgresStore) ListCompleted(ctx context.Context, game Game, limit int) ([]*CompletedRecord, error) {
	query := `
		SELECT nonce, game, requester, outcome, random, winner, payout, prize_id, item_id, settled_at
		FROM game_completed
	`
	args := []any{limit}
	if game != "" {
		query += ` WHERE game = $2`
		args = append(args, string(game))
	}
	query += ` ORDER BY settled_at DESC LIMIT $1`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var recs []*CompletedRecord
	for rows.Next() {
		rec := &CompletedRecord{}
		var payout int64
		if err := rows.Scan(&rec.Nonce, &rec.Game, &rec.Requester, &rec.Outcome, &rec.Random,
			&rec.Winner, &payout, &rec.PrizeID, &rec.ItemID, &rec.SettledAt); err != nil {
			return nil, err
		}
		rec.Payout = uint64(payout)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (p *PostgresStore) SaveWheel(ctx context.Context, wheelID string, prizes []*Prize) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM wheel_prizes WHERE wheel_id = $1`, wheelID); err != nil {
		return err
	}
	for i, prize := range prizes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO wheel_prizes (wheel_id, position, prize_id, kind, amount, stock, collection, items)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, wheelID, i, prize.ID, string(prize.Kind), int64(prize.Amount),
			int32(prize.Stock), prize.Collection, pq.Array(prize.Items)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *PostgresStore) WheelPrizes(ctx context.Context, wheelID string) ([]*Prize, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT prize_id, kind, amount, stock, collection, items
		FROM wheel_prizes WHERE wheel_id = $1 ORDER BY position
	`, wheelID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var prizes []*Prize
	for rows.Next() {
		prize := &Prize{}
		var amount int64
		var stock int32
		var items pq.StringArray
		if err := rows.Scan(&prize.ID, &prize.Kind, &amount, &stock, &prize.Collection, &items); err != nil {
			return nil, err
		}
		prize.Amount = uint64(amount)
		prize.Stock = uint32(stock)
		prize.Items = []string(items)
		prizes = append(prizes, prize)
	}
	return prizes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPending(row rowScanner) (*PendingRequest, error) {
	req := &PendingRequest{}
	var escrowed int64
	var move int16
	var participants pq.StringArray
	err := row.Scan(&req.Nonce, &req.Game, &req.Requester, &escrowed, &req.Seed,
		&move, &participants, &req.WheelID, &req.CreatedAt)
	if err != nil {
		return nil, err
	}
	req.Escrowed = uint64(escrowed)
	req.Move = Move(move)
	req.Participants = []string(participants)
	return req, nil
}

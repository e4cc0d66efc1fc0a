package sqlcgen

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const upsertConsoleSession = `-- name: UpsertConsoleSession :one
INSERT INTO console_sessions (
  id,
  upstream_token,
  username,
  mfa_pending,
  created_at,
  last_seen_at
)
VALUES ($1::uuid, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE
SET upstream_token = EXCLUDED.upstream_token,
    username = EXCLUDED.username,
    mfa_pending = EXCLUDED.mfa_pending,
    last_seen_at = EXCLUDED.last_seen_at
RETURNING id::text, upstream_token, username, mfa_pending, created_at, last_seen_at
`

type UpsertConsoleSessionParams struct {
	ID            string
	UpstreamToken string
	Username      string
	MFAPending    bool
	CreatedAt     time.Time
	LastSeenAt    time.Time
}

func (q *Queries) UpsertConsoleSession(ctx context.Context, arg UpsertConsoleSessionParams) (ConsoleSession, error) {
	row := q.db.QueryRow(ctx, upsertConsoleSession,
		arg.ID,
		arg.UpstreamToken,
		arg.Username,
		arg.MFAPending,
		arg.CreatedAt,
		arg.LastSeenAt,
	)
	var i ConsoleSession
	err := row.Scan(&i.ID, &i.UpstreamToken, &i.Username, &i.MFAPending, &i.CreatedAt, &i.LastSeenAt)
	return i, err
}

const getConsoleSession = `-- name: GetConsoleSession :one
SELECT id::text, upstream_token, username, mfa_pending, created_at, last_seen_at
FROM console_sessions
WHERE id = $1::uuid
`

func (q *Queries) GetConsoleSession(ctx context.Context, id string) (ConsoleSession, error) {
	row := q.db.QueryRow(ctx, getConsoleSession, id)
	var i ConsoleSession
	err := row.Scan(&i.ID, &i.UpstreamToken, &i.Username, &i.MFAPending, &i.CreatedAt, &i.LastSeenAt)
	return i, err
}

const touchConsoleSession = `-- name: TouchConsoleSession :execrows
UPDATE console_sessions
SET last_seen_at = $2
WHERE id = $1::uuid
`

type TouchConsoleSessionParams struct {
	ID         string
	LastSeenAt time.Time
}

func (q *Queries) TouchConsoleSession(ctx context.Context, arg TouchConsoleSessionParams) (int64, error) {
	tag, err := q.db.Exec(ctx, touchConsoleSession, arg.ID, arg.LastSeenAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const setConsoleSessionMFAPending = `-- name: SetConsoleSessionMFAPending :execrows
UPDATE console_sessions
SET mfa_pending = $2
WHERE id = $1::uuid
`

type SetConsoleSessionMFAPendingParams struct {
	ID         string
	MFAPending bool
}

func (q *Queries) SetConsoleSessionMFAPending(ctx context.Context, arg SetConsoleSessionMFAPendingParams) (int64, error) {
	tag, err := q.db.Exec(ctx, setConsoleSessionMFAPending, arg.ID, arg.MFAPending)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteConsoleSession = `-- name: DeleteConsoleSession :exec
DELETE FROM console_sessions
WHERE id = $1::uuid
`

func (q *Queries) DeleteConsoleSession(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, deleteConsoleSession, id)
	return err
}

const deleteIdleConsoleSessions = `-- name: DeleteIdleConsoleSessions :many
DELETE FROM console_sessions
WHERE last_seen_at < $1
RETURNING id::text
`

func (q *Queries) DeleteIdleConsoleSessions(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := q.db.Query(ctx, deleteIdleConsoleSessions, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

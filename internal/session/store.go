package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"nzyme_console/console-go/internal/sqlcgen"
)

var ErrNotFound = errors.New("console session not found")

// Record binds a console session id (the browser cookie) to an upstream token.
type Record struct {
	ID         string
	Token      string
	Username   string
	MFAPending bool
	CreatedAt  time.Time
	LastSeenAt time.Time
}

type Store interface {
	Get(ctx context.Context, id string) (Record, error)
	Put(ctx context.Context, rec Record) error
	Touch(ctx context.Context, id string, at time.Time) error
	// SetMFAPending changes only the second-factor flag of an existing record.
	SetMFAPending(ctx context.Context, id string, pending bool) error
	Delete(ctx context.Context, id string) error
	// DeleteIdle removes records last seen before cutoff and returns their ids.
	DeleteIdle(ctx context.Context, cutoff time.Time) ([]string, error)
}

type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) Put(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.records[rec.ID]; ok && !existing.CreatedAt.IsZero() {
		rec.CreatedAt = existing.CreatedAt
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *MemoryStore) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.LastSeenAt = at
	m.records[id] = rec
	return nil
}

func (m *MemoryStore) SetMFAPending(_ context.Context, id string, pending bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.MFAPending = pending
	m.records[id] = rec
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *MemoryStore) DeleteIdle(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, rec := range m.records {
		if rec.LastSeenAt.Before(cutoff) {
			ids = append(ids, id)
			delete(m.records, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Queries is the minimal DB interface the Postgres store needs.
//
// NOTE: *sqlcgen.Queries satisfies this.
type Queries interface {
	UpsertConsoleSession(ctx context.Context, arg sqlcgen.UpsertConsoleSessionParams) (sqlcgen.ConsoleSession, error)
	GetConsoleSession(ctx context.Context, id string) (sqlcgen.ConsoleSession, error)
	TouchConsoleSession(ctx context.Context, arg sqlcgen.TouchConsoleSessionParams) (int64, error)
	SetConsoleSessionMFAPending(ctx context.Context, arg sqlcgen.SetConsoleSessionMFAPendingParams) (int64, error)
	DeleteConsoleSession(ctx context.Context, id string) error
	DeleteIdleConsoleSessions(ctx context.Context, cutoff time.Time) ([]string, error)
}

type PostgresStore struct {
	q Queries
}

func NewPostgresStore(q Queries) *PostgresStore {
	return &PostgresStore{q: q}
}

// validID reports whether id can name a row. The id column is a uuid.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	if !validID(id) {
		return Record{}, ErrNotFound
	}
	row, err := p.q.GetConsoleSession(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return fromRow(row), nil
}

func (p *PostgresStore) Put(ctx context.Context, rec Record) error {
	_, err := p.q.UpsertConsoleSession(ctx, sqlcgen.UpsertConsoleSessionParams{
		ID:            rec.ID,
		UpstreamToken: rec.Token,
		Username:      rec.Username,
		MFAPending:    rec.MFAPending,
		CreatedAt:     rec.CreatedAt,
		LastSeenAt:    rec.LastSeenAt,
	})
	return err
}

func (p *PostgresStore) Touch(ctx context.Context, id string, at time.Time) error {
	if !validID(id) {
		return ErrNotFound
	}
	n, err := p.q.TouchConsoleSession(ctx, sqlcgen.TouchConsoleSessionParams{ID: id, LastSeenAt: at})
	return rowsOrNotFound(n, err)
}

func (p *PostgresStore) SetMFAPending(ctx context.Context, id string, pending bool) error {
	if !validID(id) {
		return ErrNotFound
	}
	n, err := p.q.SetConsoleSessionMFAPending(ctx, sqlcgen.SetConsoleSessionMFAPendingParams{ID: id, MFAPending: pending})
	return rowsOrNotFound(n, err)
}

func rowsOrNotFound(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return nil
	}
	return p.q.DeleteConsoleSession(ctx, id)
}

func (p *PostgresStore) DeleteIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	return p.q.DeleteIdleConsoleSessions(ctx, cutoff)
}

func fromRow(row sqlcgen.ConsoleSession) Record {
	return Record{
		ID:         row.ID,
		Token:      row.UpstreamToken,
		Username:   row.Username,
		MFAPending: row.MFAPending,
		CreatedAt:  row.CreatedAt,
		LastSeenAt: row.LastSeenAt,
	}
}

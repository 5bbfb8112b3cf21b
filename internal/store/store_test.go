package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamdevhq/media-relay/internal/models"
)

type fakeRow struct {
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) > 0 {
		if p, ok := dest[0].(*int); ok {
			*p = 1
		}
	}
	return nil
}

// fakeRows replays canned row values through the pgx.Rows surface the store
// actually touches.
type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = row[i].(int64)
		case *string:
			*p = row[i].(string)
		case *time.Time:
			*p = row[i].(time.Time)
		default:
			return errors.New("unexpected scan destination")
		}
	}
	return nil
}

type fakeQuerier struct {
	execSQL   []string
	execArgs  [][]any
	querySQL  []string
	queryArgs [][]any
	queryRows [][]any
	rowErr    error
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return pgconn.CommandTag{}, nil
}

func (f *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.querySQL = append(f.querySQL, sql)
	f.queryArgs = append(f.queryArgs, args)
	return &fakeRows{rows: f.queryRows}, nil
}

func (f *fakeQuerier) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return fakeRow{err: f.rowErr}
}

func newTestStore(q *fakeQuerier) *DBStore {
	return &DBStore{db: q, seedKey: "seed-key"}
}

func TestLookupKeyFound(t *testing.T) {
	q := &fakeQuerier{}
	ok, err := newTestStore(q).LookupKey(context.Background(), "some-key")

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLookupKeyMissing(t *testing.T) {
	q := &fakeQuerier{rowErr: pgx.ErrNoRows}
	ok, err := newTestStore(q).LookupKey(context.Background(), "absent")

	require.NoError(t, err, "a missing row is not an error")
	assert.False(t, ok)
}

func TestLookupKeyQueryFailure(t *testing.T) {
	q := &fakeQuerier{rowErr: errors.New("connection reset")}
	_, err := newTestStore(q).LookupKey(context.Background(), "some-key")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "key lookup failed")
}

func TestCreateKeyAbsorbsDuplicates(t *testing.T) {
	q := &fakeQuerier{}
	st := newTestStore(q)

	require.NoError(t, st.CreateKey(context.Background(), "new-key", "admin"))

	require.Len(t, q.execSQL, 1)
	assert.Contains(t, q.execSQL[0], "ON CONFLICT (key) DO NOTHING")
	assert.Equal(t, []any{"new-key", "admin"}, q.execArgs[0])
}

func TestDeleteKeyProtectsSeed(t *testing.T) {
	q := &fakeQuerier{}
	st := newTestStore(q)

	require.NoError(t, st.DeleteKey(context.Background(), "seed-key"))

	assert.Empty(t, q.execSQL, "the seed key never reaches the database")
}

func TestDeleteKeyRemovesRow(t *testing.T) {
	q := &fakeQuerier{}
	st := newTestStore(q)

	require.NoError(t, st.DeleteKey(context.Background(), "other-key"))

	require.Len(t, q.execSQL, 1)
	assert.Equal(t, []any{"other-key"}, q.execArgs[0])
}

func TestListKeysNewestFirst(t *testing.T) {
	now := time.Now()
	q := &fakeQuerier{queryRows: [][]any{
		{"new-key", now, "admin"},
		{"seed-key", now.Add(-time.Hour), "initial"},
	}}

	keys, err := newTestStore(q).ListKeys(context.Background())
	require.NoError(t, err)

	require.Len(t, q.querySQL, 1)
	assert.Contains(t, q.querySQL[0], "ORDER BY created_at DESC")

	require.Len(t, keys, 2)
	assert.Equal(t, "new-key", keys[0].Key)
	assert.Equal(t, "seed-key", keys[1].Key)
	assert.Equal(t, "initial", keys[1].CreatedBy)
}

func TestListRecentLogsOrdersAndLimits(t *testing.T) {
	now := time.Now()
	q := &fakeQuerier{queryRows: [][]any{
		{int64(2), "k", "https://example.com/b", now, "1.2.3.4"},
		{int64(1), "k", "https://example.com/a", now.Add(-time.Minute), "1.2.3.4"},
	}}

	entries, err := newTestStore(q).ListRecentLogs(context.Background(), 50)
	require.NoError(t, err)

	require.Len(t, q.querySQL, 1)
	assert.Contains(t, q.querySQL[0], "ORDER BY timestamp DESC")
	assert.Contains(t, q.querySQL[0], "LIMIT $1")
	assert.Equal(t, []any{50}, q.queryArgs[0], "display cap is pushed into the query")

	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].ID, "newest entry first")
	assert.True(t, !entries[1].Timestamp.After(entries[0].Timestamp))
}

func TestInsertLog(t *testing.T) {
	q := &fakeQuerier{}
	st := newTestStore(q)

	now := time.Now()
	entry := models.LogEntry{KeyUsed: "k", URL: "https://example.com/x", Timestamp: now, IP: "1.2.3.4"}
	require.NoError(t, st.InsertLog(context.Background(), entry))

	require.Len(t, q.execArgs, 1)
	assert.Equal(t, []any{"k", "https://example.com/x", now, "1.2.3.4"}, q.execArgs[0])
}

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragmede/astroshare/internal/api"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func dump(t *testing.T, db *DB) map[string]string {
	t.Helper()
	rows, err := db.db.Query(`SELECT key, value FROM local_storage`)
	require.NoError(t, err)
	defer rows.Close()

	all := map[string]string{}
	for rows.Next() {
		var k, v string
		require.NoError(t, rows.Scan(&k, &v))
		all[k] = v
	}
	require.NoError(t, rows.Err())
	return all
}

func TestOpen_CreatesTables(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []string{"local_storage", "post_lists"} {
		var name string
		err := db.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Update(ctx, map[string]string{"userName": "ada"}, nil))
	require.NoError(t, db.Close())

	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	v, ok, err := db.Get(ctx, "userName")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ada", v)
}

func TestGet_Missing(t *testing.T) {
	db := openTestDB(t)

	v, ok, err := db.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestUpdate_Overwrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Update(ctx, map[string]string{"k": "old"}, nil))
	require.NoError(t, db.Update(ctx, map[string]string{"k": "new"}, nil))

	v, ok, err := db.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestUpdate_SetsAndRemovesTogether(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Update(ctx, map[string]string{"a": "1", "b": "2", "c": "3"}, nil))
	require.NoError(t, db.Update(ctx, map[string]string{"a": "10"}, []string{"b", "missing"}))

	assert.Equal(t, map[string]string{"a": "10", "c": "3"}, dump(t, db))
}

func TestUpdate_RemoveMissingKey(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Update(ctx, map[string]string{"k": "v"}, nil))
	require.NoError(t, db.Update(ctx, nil, []string{"k"}))
	require.NoError(t, db.Update(ctx, nil, []string{"k"}))

	_, ok, err := db.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.withTx(ctx, func(tx execer) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO local_storage (key, value) VALUES ('k', 'v')`)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, ok, err := db.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = db.withTx(ctx, func(tx execer) error {
			_, _ = tx.ExecContext(ctx, `INSERT INTO local_storage (key, value) VALUES ('k', 'v')`)
			panic("boom")
		})
	})

	_, ok, err := db.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostList_MissFreshStale(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	posts, fresh, err := db.GetPostList(ctx, "all", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, posts)
	assert.False(t, fresh)

	want := []api.Post{
		{ID: "p1", Title: "Orion", Content: "nebula", Sender: "ada", Likes: []string{"bob"}},
		{ID: "p2", Title: "Moon", Content: "crater", Sender: "bob"},
	}
	require.NoError(t, db.PutPostList(ctx, "all", want))

	posts, fresh, err = db.GetPostList(ctx, "all", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, want, posts)

	_, fresh, err = db.GetPostList(ctx, "all", 0)
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestPostList_EmptyListIsHit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.PutPostList(ctx, "sender:ada", nil))

	posts, fresh, err := db.GetPostList(ctx, "sender:ada", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
	assert.True(t, fresh)
}

func TestInvalidatePostLists(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.PutPostList(ctx, "all", []api.Post{{ID: "p1"}}))
	require.NoError(t, db.InvalidatePostLists(ctx))

	posts, _, err := db.GetPostList(ctx, "all", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, posts)
}

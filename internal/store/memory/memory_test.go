package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureauth-ai/sentinel/internal/store"
)

func newTestStore(t *testing.T) *Store {
	s := New()
	require.NoError(t, s.CreateTenant(context.Background(), "t1", []string{"username", "email"}))
	return s
}

func insertUser(t *testing.T, s *Store, username string) int64 {
	id, err := s.Insert(context.Background(), "t1", &store.Record{
		PasswordToken: "tok",
		Custom:        map[string]string{"username": username},
	})
	require.NoError(t, err)
	return id
}

func TestInsertAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := insertUser(t, s, "alice")
	assert.Equal(t, int64(1), id)

	rec, err := s.FindByColumn(ctx, "t1", "username", "alice")
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "", rec.Custom["email"], "undeclared values default to empty")

	byID, err := s.FindByID(ctx, "t1", id)
	require.NoError(t, err)
	assert.Equal(t, rec, byID)
}

func TestFindErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertUser(t, s, "alice")

	_, err := s.FindByColumn(ctx, "t1", "username", "bob")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.FindByColumn(ctx, "t1", "shoe_size", "42")
	assert.ErrorIs(t, err, store.ErrUnknownColumn)

	_, err = s.FindByColumn(ctx, "nope", "username", "alice")
	assert.ErrorIs(t, err, store.ErrUnknownTenant)

	_, err = s.FindByID(ctx, "t1", 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFindFirstMatchInInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := insertUser(t, s, "dup")
	insertUser(t, s, "dup")

	rec, err := s.FindByColumn(ctx, "t1", "username", "dup")
	require.NoError(t, err)
	assert.Equal(t, first, rec.ID)
}

func TestInsertUndeclaredColumn(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Insert(context.Background(), "t1", &store.Record{
		Custom: map[string]string{"shoe_size": "42"},
	})
	assert.ErrorIs(t, err, store.ErrUnknownColumn)
}

func TestAddColumnBackfills(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := insertUser(t, s, "alice")

	require.NoError(t, s.AddColumn(ctx, "t1", "nickname"))
	assert.ErrorIs(t, s.AddColumn(ctx, "t1", "nickname"), store.ErrDuplicateColumn)

	rec, err := s.FindByID(ctx, "t1", id)
	require.NoError(t, err)
	v, ok := rec.Custom["nickname"]
	assert.True(t, ok)
	assert.Equal(t, "", v)
}

func TestRemoveColumnDropsValues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := insertUser(t, s, "alice")

	require.NoError(t, s.RemoveColumn(ctx, "t1", "email"))
	assert.ErrorIs(t, s.RemoveColumn(ctx, "t1", "email"), store.ErrUnknownColumn)

	rec, err := s.FindByID(ctx, "t1", id)
	require.NoError(t, err)
	_, ok := rec.Custom["email"]
	assert.False(t, ok)

	_, err = s.FindByColumn(ctx, "t1", "email", "")
	assert.ErrorIs(t, err, store.ErrUnknownColumn)
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := insertUser(t, s, "alice")

	rec, err := s.FindByID(ctx, "t1", id)
	require.NoError(t, err)

	rec.TotalLogins = 7
	rec.Custom["email"] = "alice@example.com"
	require.NoError(t, s.Update(ctx, "t1", rec))

	got, err := s.FindByID(ctx, "t1", id)
	require.NoError(t, err)
	assert.Equal(t, 7, got.TotalLogins)
	assert.Equal(t, "alice@example.com", got.Custom["email"])

	assert.ErrorIs(t, s.Update(ctx, "t1", &store.Record{ID: 99}), store.ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertUser(t, s, "alice")
	insertUser(t, s, "bob")

	require.NoError(t, s.Delete(ctx, "t1", "username", "alice"))

	_, err := s.FindByColumn(ctx, "t1", "username", "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)

	all, err := s.All(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "bob", all[0].Custom["username"])

	assert.ErrorIs(t, s.Delete(ctx, "t1", "username", "alice"), store.ErrNotFound)
}

func TestReadsAreIsolatedCopies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := insertUser(t, s, "alice")

	rec, err := s.FindByID(ctx, "t1", id)
	require.NoError(t, err)

	// Mutating a returned record must not leak into the store.
	rec.Custom["username"] = "mallory"
	rec.PrevDevices = append(rec.PrevDevices, "evil-device")
	rec.PrevLogins = append(rec.PrevLogins, time.Now())

	got, err := s.FindByID(ctx, "t1", id)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Custom["username"])
	assert.Empty(t, got.PrevDevices)
	assert.Empty(t, got.PrevLogins)
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func TestMemoryStore_GetPutDeleteScan(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "call:b1:2", []byte(`2`)))
	require.NoError(t, s.Put(ctx, "call:b1:1", []byte(`1`)))
	require.NoError(t, s.Put(ctx, "call:b2:1", []byte(`3`)))

	entries, err := s.Scan(ctx, "call:b1:")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "call:b1:1", entries[0].Key)
	assert.Equal(t, "call:b1:2", entries[1].Key)

	require.NoError(t, s.Delete(ctx, "call:b1:1"))
	_, err = s.Get(ctx, "call:b1:1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	v := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", v))
	v[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestCollection_RoundTripAndList(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[record](NewMemoryStore(), "campaign")

	require.NoError(t, c.Put(ctx, "b1:c1", record{ID: "c1", Status: "draft"}))
	require.NoError(t, c.Put(ctx, "b1:c2", record{ID: "c2", Status: "running"}))
	require.NoError(t, c.Put(ctx, "b2:c3", record{ID: "c3", Status: "paused"}))

	got, err := c.Get(ctx, "b1:c2")
	require.NoError(t, err)
	assert.Equal(t, "running", got.Status)

	list, err := c.List(ctx, "b1:")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c1", list[0].ID)

	all, err := c.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = c.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `call\_in\%`, escapeLike("call_in%"))
}

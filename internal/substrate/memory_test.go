package substrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", []byte("v1")))
	data, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", string(data))
	assert.Equal(t, 1, m.Writes())
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	in := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", in))
	in[0] = 'X'

	out, _, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))

	out[0] = 'Y'
	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemory_Quota(t *testing.T) {
	m := NewMemory(WithQuota(10))
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("12345")))
	require.NoError(t, m.Set(ctx, "b", []byte("12345")))

	err := m.Set(ctx, "b", []byte("123456"))
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// Replacing a key only counts its new size.
	require.NoError(t, m.Set(ctx, "a", []byte("1234")))

	data, _, _ := m.Get(ctx, "b")
	assert.Equal(t, "12345", string(data), "failed write must not change stored data")
}

func TestMemory_FailWrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	boom := errors.New("disk full")

	m.FailWrites("k", boom)
	assert.ErrorIs(t, m.Set(ctx, "k", []byte("v")), boom)
	assert.NoError(t, m.Set(ctx, "other", []byte("v")))

	m.FailWrites("k", nil)
	assert.NoError(t, m.Set(ctx, "k", []byte("v")))
}

func TestMemory_CancelledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, m.Set(ctx, "k", nil), context.Canceled)
}

func TestMemory_KeysAndRevision(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	keys, err := m.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, m.Set(ctx, "objectives", []byte(`[]`)))
	require.NoError(t, m.Set(ctx, "gtd-items", []byte(`[]`)))
	require.NoError(t, m.Set(ctx, "gtd-items", []byte(`[{}]`)))

	keys, err = m.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gtd-items", "objectives"}, keys)

	rev, err := m.Revision(ctx, "gtd-items")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)

	m.FailWrites("objectives", ErrQuotaExceeded)
	require.Error(t, m.Set(ctx, "objectives", []byte(`[{}]`)))
	rev, err = m.Revision(ctx, "objectives")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev, "failed writes do not count")

	rev, err = m.Revision(ctx, "never")
	require.NoError(t, err)
	assert.Zero(t, rev)
}

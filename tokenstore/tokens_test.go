package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return New(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestIssueAndRedeem(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, "worker")
	require.NoError(t, err)
	assert.Len(t, token, 64) // 32 random bytes, hex encoded

	ok, err := store.Redeem(ctx, "worker", token)
	require.NoError(t, err)
	assert.True(t, ok)

	// Single use: the same token cannot be redeemed twice.
	ok, err = store.Redeem(ctx, "worker", token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedeemMismatchConsumesToken(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, "worker")
	require.NoError(t, err)

	ok, err := store.Redeem(ctx, "worker", "wrong-guess")
	require.NoError(t, err)
	assert.False(t, ok)

	// The stored token is burned by the failed attempt.
	ok, err = store.Redeem(ctx, "worker", token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedeemWithoutIssuedToken(t *testing.T) {
	store, _ := newTestStore(t)
	ok, err := store.Redeem(context.Background(), "worker", "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIssueReplacesPreviousToken(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.Issue(ctx, "worker")
	require.NoError(t, err)
	second, err := store.Issue(ctx, "worker")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	ok, err := store.Redeem(ctx, "worker", first)
	require.NoError(t, err)
	assert.False(t, ok, "re-issuing invalidates the earlier token")
}

func TestTokensAreScopedPerUser(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	workerToken, err := store.Issue(ctx, "worker")
	require.NoError(t, err)
	_, err = store.Issue(ctx, "other")
	require.NoError(t, err)

	ok, err := store.Redeem(ctx, "other", workerToken)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Redeem(ctx, "worker", workerToken)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTokenExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, "worker")
	require.NoError(t, err)

	mr.FastForward(TokenTTL + time.Second)

	ok, err := store.Redeem(ctx, "worker", token)
	require.NoError(t, err)
	assert.False(t, ok)
}

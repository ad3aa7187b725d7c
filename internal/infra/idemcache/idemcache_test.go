//go:build unit

package idemcache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"health-entitlement-engine/internal/usecase/shared"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	store  map[string]string
	getErr error
	setErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{store: map[string]string{}}
}

func (f *fakeClient) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.store[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeClient) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.store[key] = value.(string)
	return nil
}

func TestOutcomeCache_RoundTrip(t *testing.T) {
	client := newFakeClient()
	cache := NewOutcomeCache(client)
	ctx := context.Background()

	outcome := shared.CachedOutcome{
		StatusCode: 200,
		Success:    true,
		Data:       json.RawMessage(`{"remaining_count":4}`),
	}

	require.NoError(t, cache.Set(ctx, "redeem", "operator", "op-1", "key-1", outcome))

	got, err := cache.Get(ctx, "redeem", "operator", "op-1", "key-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 200, got.StatusCode)
	assert.True(t, got.Success)
	assert.JSONEq(t, `{"remaining_count":4}`, string(got.Data))
}

func TestOutcomeCache_KeyIsolation(t *testing.T) {
	client := newFakeClient()
	cache := NewOutcomeCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "redeem", "operator", "op-1", "key-1", shared.CachedOutcome{StatusCode: 200}))

	tests := []struct {
		name      string
		operation string
		actorType string
		actorID   string
		key       string
	}{
		{"different key", "redeem", "operator", "op-1", "key-2"},
		{"different actor", "redeem", "operator", "op-2", "key-1"},
		{"different actor type", "redeem", "user", "op-1", "key-1"},
		{"different operation", "transfer", "operator", "op-1", "key-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cache.Get(ctx, tt.operation, tt.actorType, tt.actorID, tt.key)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestOutcomeCache_MissReturnsNil(t *testing.T) {
	cache := NewOutcomeCache(newFakeClient())

	got, err := cache.Get(context.Background(), "redeem", "operator", "op-1", "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOutcomeCache_FailsOpen(t *testing.T) {
	t.Run("read error degrades to miss", func(t *testing.T) {
		client := newFakeClient()
		client.getErr = errors.New("connection refused")
		cache := NewOutcomeCache(client)

		got, err := cache.Get(context.Background(), "redeem", "operator", "op-1", "key-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("write error is swallowed", func(t *testing.T) {
		client := newFakeClient()
		client.setErr = errors.New("connection refused")
		cache := NewOutcomeCache(client)

		err := cache.Set(context.Background(), "redeem", "operator", "op-1", "key-1", shared.CachedOutcome{StatusCode: 200})
		assert.NoError(t, err)
	})

	t.Run("corrupt entry degrades to miss", func(t *testing.T) {
		client := newFakeClient()
		client.store[cacheKey("redeem", "operator", "op-1", "key-1")] = "{not json"
		cache := NewOutcomeCache(client)

		got, err := cache.Get(context.Background(), "redeem", "operator", "op-1", "key-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acari-app/acari-backend/pkg/config"
)

// memStore is a mutex-guarded map standing in for Redis.
type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStore() *memStore { return &memStore{data: map[string]string{}} }

func (m *memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	return nil
}

func (m *memStore) GetDel(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	delete(m.data, key)
	return v, nil
}

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memStore) AccessSessionKey(accessID string) string { return "sess:" + accessID }

func newTestManager() (*Manager, *memStore) {
	store := newMemStore()
	return &Manager{store: store, ttl: time.Hour}, store
}

func TestIssueStoresDigestOnly(t *testing.T) {
	manager, store := newTestManager()

	token, err := manager.Issue(context.Background(), "access-123")
	require.NoError(t, err)

	assert.NotEqual(t, token, store.data["sess:access-123"])
	assert.Equal(t, digest(token), store.data["sess:access-123"])
}

func TestRotateMovesSessionToNewAccessID(t *testing.T) {
	ctx := context.Background()
	manager, store := newTestManager()
	token, err := manager.Issue(ctx, "access-123")
	require.NoError(t, err)

	accessID, next, err := manager.Rotate(ctx, "access-123", token)
	require.NoError(t, err)

	assert.NotContains(t, store.data, "sess:access-123")
	assert.Equal(t, digest(next), store.data["sess:"+accessID])
	assert.NotEqual(t, token, next)

	_, _, err = manager.Rotate(ctx, "access-123", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "a rotated token is single use")
}

func TestRotateWithWrongTokenBurnsSession(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()
	token, err := manager.Issue(ctx, "a1")
	require.NoError(t, err)

	_, _, err = manager.Rotate(ctx, "a1", "forged")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, _, err = manager.Rotate(ctx, "a1", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestConcurrentRotateHasOneWinner(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()
	token, err := manager.Issue(ctx, "a1")
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := manager.Rotate(ctx, "a1", token); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestRevokeEndsSession(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()
	_, err := manager.Issue(ctx, "a1")
	require.NoError(t, err)

	live, err := manager.HasSession(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, live)

	require.NoError(t, manager.Revoke(ctx, "a1"))
	live, err = manager.HasSession(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, live)
}

func TestBlankAccessIDsAreRejected(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()

	_, err := manager.Issue(ctx, " ")
	assert.ErrorIs(t, err, errNoAccessID)
	_, err = manager.HasSession(ctx, "")
	assert.ErrorIs(t, err, errNoAccessID)
	_, _, err = manager.Rotate(ctx, "", "token")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestNewManagerRequiresRefreshLongerThanAccess(t *testing.T) {
	cfg := config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 30}
	_, err := NewManager(newMemStore(), cfg)
	assert.Error(t, err)

	cfg.RefreshTokenTTLMinutes = 120
	_, err = NewManager(newMemStore(), cfg)
	assert.NoError(t, err)

	_, err = NewManager(nil, cfg)
	assert.Error(t, err)
}

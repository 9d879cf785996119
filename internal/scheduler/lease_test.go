package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/escalation-service/internal/domain"
)

// stubLeaseStore backs RedisLease with an in-memory key space, answering
// with the constructed command results go-redis exposes for tests.
type stubLeaseStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newStubLeaseStore() *stubLeaseStore {
	return &stubLeaseStore{values: make(map[string]string)}
}

func (s *stubLeaseStore) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	s.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (s *stubLeaseStore) Get(_ context.Context, key string) *redis.StringCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (s *stubLeaseStore) Expire(_ context.Context, key string, _ time.Duration) *redis.BoolCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	return redis.NewBoolResult(ok, nil)
}

func (s *stubLeaseStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := s.values[key]; ok {
			delete(s.values, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func (s *stubLeaseStore) holder(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

func newTestLease(store *stubLeaseStore, token string) *RedisLease {
	return &RedisLease{store: store, key: "escalation:scheduler:lease", token: token, ttl: 30 * time.Second}
}

func TestLeaseHolderReacquiresAcrossTicks(t *testing.T) {
	store := newStubLeaseStore()
	lease := newTestLease(store, "holder-1")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		held, err := lease.Acquire(ctx)
		require.NoError(t, err)
		assert.True(t, held, "tick %d", i)
	}
}

func TestLeaseRejectsSecondInstanceWhileHeld(t *testing.T) {
	store := newStubLeaseStore()
	first := newTestLease(store, "holder-1")
	second := newTestLease(store, "holder-2")

	ctx := context.Background()
	held, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, held)

	held, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, held)

	// The holder itself keeps passing.
	held, err = first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestLeaseReleaseOnlyFreesOwnKey(t *testing.T) {
	store := newStubLeaseStore()
	first := newTestLease(store, "holder-1")
	second := newTestLease(store, "holder-2")

	ctx := context.Background()
	held, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, held)

	require.NoError(t, second.Release(ctx))
	holder, ok := store.holder("escalation:scheduler:lease")
	require.True(t, ok)
	assert.Equal(t, "holder-1", holder)

	require.NoError(t, first.Release(ctx))
	_, ok = store.holder("escalation:scheduler:lease")
	assert.False(t, ok)

	held, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, held)
}

type countingProjectRepo struct {
	listCalls atomic.Int64
}

func (r *countingProjectRepo) GetByID(context.Context, string) (*domain.Project, error) {
	return nil, pgx.ErrNoRows
}

func (r *countingProjectRepo) ListEscalating(context.Context) ([]domain.Project, error) {
	r.listCalls.Add(1)
	return nil, nil
}

func (r *countingProjectRepo) List(context.Context) ([]domain.Project, error) {
	return nil, nil
}

// A single instance must keep ticking under its own lease instead of
// locking itself out until the TTL expires.
func TestRunKeepsTickingUnderOwnLease(t *testing.T) {
	store := newStubLeaseStore()
	projects := &countingProjectRepo{}
	scheduler := New(Dependencies{
		TicketRepo:  &stubTicketRepo{tickets: make(map[string]*domain.Ticket)},
		ProjectRepo: projects,
		GroupRepo:   &stubGroupRepo{groups: make(map[string]*domain.NotificationGroup)},
		Lifecycle:   &stubLifecycle{},
		Lease:       newTestLease(store, "holder-1"),
		Logger:      zap.NewNop(),
		Interval:    time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return projects.listCalls.Load() >= 2 },
		2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	// Shutdown handed the lease back.
	_, ok := store.holder("escalation:scheduler:lease")
	assert.False(t, ok)
}

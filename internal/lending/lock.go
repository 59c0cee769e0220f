package lending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bsm/redislock"
)

// Locker serializes check-then-act sequences on a single item.
type Locker interface {
	// Lock blocks until the item is held or ctx is done. The returned
	// function releases the lock.
	Lock(ctx context.Context, itemID int64) (unlock func(), err error)
}

// KeyedMutex is an in-process Locker with one lock per item.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*keyedLock)}
}

func (m *KeyedMutex) Lock(ctx context.Context, itemID int64) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[itemID]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		m.locks[itemID] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			m.release(itemID, l)
		}, nil
	case <-ctx.Done():
		m.release(itemID, l)
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) release(itemID int64, l *keyedLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, itemID)
	}
}

// RedisLocker is a Locker shared by every process using the same Redis.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker returns a Locker backed by client. A lock expires after ttl
// if its holder dies; Lock gives up with ErrItemBusy after wait.
func NewRedisLocker(client redislock.RedisClient, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: redislock.New(client), ttl: ttl, wait: wait}
}

func (l *RedisLocker) Lock(ctx context.Context, itemID int64) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	lock, err := l.client.Obtain(ctx, lockKey(itemID), l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(50 * time.Millisecond),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("item %d: %w", itemID, ErrItemBusy)
	}
	if err != nil {
		return nil, fmt.Errorf("obtaining item lock: %w", err)
	}

	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			slog.Warn("failed to release item lock", "item", itemID, "error", err)
		}
	}, nil
}

func lockKey(itemID int64) string {
	return fmt.Sprintf("izposoja:item:%d", itemID)
}

package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTurnLockTTL  = 2 * time.Minute
	defaultTurnLockPoll = 50 * time.Millisecond
)

// TurnLock serializes turns on one conversation. Acquire blocks until the
// conversation is free or ctx is done.
type TurnLock interface {
	Acquire(ctx context.Context, id string) (release func(), err error)
}

// MemoryTurnLock is a keyed mutex for a single process.
type MemoryTurnLock struct {
	mu    sync.Mutex
	slots map[string]*turnSlot
}

type turnSlot struct {
	ch   chan struct{}
	refs int
}

func NewMemoryTurnLock() *MemoryTurnLock {
	return &MemoryTurnLock{slots: make(map[string]*turnSlot)}
}

func (l *MemoryTurnLock) Acquire(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[id]
	if !ok {
		slot = &turnSlot{ch: make(chan struct{}, 1)}
		l.slots[id] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(id, slot)
		return nil, fmt.Errorf("%w: %s: %w", ErrConversationBusy, id, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.drop(id, slot)
		})
	}, nil
}

func (l *MemoryTurnLock) drop(id string, slot *turnSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, id)
	}
}

// releaseScript deletes the lock only when it still holds our token, so an
// expired lock taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisTurnLock serializes turns across API instances with a SET NX lock per
// conversation. The TTL bounds how long a crashed holder blocks the
// conversation.
type RedisTurnLock struct {
	redis *redis.Client
	ttl   time.Duration
	poll  time.Duration
}

func NewRedisTurnLock(client *redis.Client, ttl time.Duration) *RedisTurnLock {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultTurnLockTTL
	}
	return &RedisTurnLock{redis: client, ttl: ttl, poll: defaultTurnLockPoll}
}

func (l *RedisTurnLock) Acquire(ctx context.Context, id string) (func(), error) {
	key := turnLockKey(id)
	token := uuid.NewString()
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("conversation: failed to lock conversation: %w", err)
		}
		if ok {
			return func() {
				_ = releaseScript.Run(context.WithoutCancel(ctx), l.redis, []string{key}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrConversationBusy, id, ctx.Err())
		case <-ticker.C:
		}
	}
}

func turnLockKey(id string) string {
	return fmt.Sprintf("conversation:%s:lock", id)
}

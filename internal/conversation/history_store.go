package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultConversationTTL = 24 * time.Hour

// HistoryStore persists conversation state between turns.
type HistoryStore interface {
	Load(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, state *State) error
}

// RedisHistoryStore keeps each conversation as a JSON blob with a TTL that is
// refreshed on every save.
type RedisHistoryStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisHistoryStore(client *redis.Client, ttl time.Duration) *RedisHistoryStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultConversationTTL
	}
	return &RedisHistoryStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("hospital.internal.conversation.history"),
	}
}

func (s *RedisHistoryStore) Save(ctx context.Context, state *State) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_history")
	defer span.End()

	if state == nil || state.ID == "" {
		return errors.New("conversation: state id is required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal history: %w", err)
	}
	if err := s.redis.Set(ctx, conversationKey(state.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist history: %w", err)
	}
	return nil
}

func (s *RedisHistoryStore) Load(ctx context.Context, id string) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_history")
	defer span.End()

	data, err := s.redis.Get(ctx, conversationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load history: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode history: %w", err)
	}
	return &state, nil
}

func conversationKey(id string) string {
	return fmt.Sprintf("conversation:%s", id)
}

// MemoryHistoryStore is a process-local HistoryStore for development and tests.
type MemoryHistoryStore struct {
	mu     sync.RWMutex
	states map[string]*State
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{states: make(map[string]*State)}
}

func (s *MemoryHistoryStore) Save(_ context.Context, state *State) error {
	if state == nil || state.ID == "" {
		return errors.New("conversation: state id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ID] = state.Clone()
	return nil
}

func (s *MemoryHistoryStore) Load(_ context.Context, id string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return state.Clone(), nil
}

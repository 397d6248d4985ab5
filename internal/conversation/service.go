package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

// Reply is returned to the API layer after a turn.
type Reply struct {
	ConversationID string    `json:"conversation_id"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

// Service loads conversation state, runs a turn and saves the result.
type Service struct {
	orchestrator *Orchestrator
	history      HistoryStore
	lock         TurnLock
	logger       *logging.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTurnLock replaces the process-local lock, e.g. with a RedisTurnLock
// when several API instances share one history store.
func WithTurnLock(lock TurnLock) ServiceOption {
	return func(s *Service) {
		if lock != nil {
			s.lock = lock
		}
	}
}

func NewService(orchestrator *Orchestrator, history HistoryStore, logger *logging.Logger, opts ...ServiceOption) *Service {
	if orchestrator == nil {
		panic("conversation: orchestrator cannot be nil")
	}
	if history == nil {
		history = NewMemoryHistoryStore()
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{orchestrator: orchestrator, history: history, lock: NewMemoryTurnLock(), logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Respond runs one turn for conversationID, starting a new conversation when
// the id is empty or unknown. Turns on the same conversation run one at a
// time. A failed turn leaves the stored history as it was before the turn.
func (s *Service) Respond(ctx context.Context, conversationID, message string) (*Reply, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	release, err := s.lock.Acquire(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	defer release()

	state, err := s.history.Load(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, ErrConversationNotFound) {
			return nil, err
		}
		state = NewState(conversationID)
	}

	updated, answer, err := s.orchestrator.RunTurn(ctx, state, message)
	if err != nil {
		return nil, err
	}
	if err := s.history.Save(ctx, updated); err != nil {
		s.logger.Error("failed to save conversation", "conversation_id", conversationID, "error", err)
		return nil, fmt.Errorf("conversation: save state: %w", err)
	}
	return &Reply{
		ConversationID: conversationID,
		Message:        answer,
		Timestamp:      updated.UpdatedAt.UTC(),
	}, nil
}

// History returns the stored messages of a conversation.
func (s *Service) History(ctx context.Context, conversationID string) ([]Message, error) {
	state, err := s.history.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return state.Messages, nil
}

package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/kungukcm/Hospital-Booking-System/internal/tools"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation. Assistant messages may carry tool
// calls; tool messages carry the results of exactly one batch, in call order.
type Message struct {
	Role        Role            `json:"role"`
	Text        string          `json:"text,omitempty"`
	ToolCalls   []tools.Request `json:"tool_calls,omitempty"`
	ToolResults []tools.Result  `json:"tool_results,omitempty"`
	At          time.Time       `json:"at"`
}

// State is the conversation carried between turns. A turn works on its own
// copy; persisting it is up to the caller.
type State struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewState(id string) *State {
	return &State{ID: id}
}

// Clone copies the message slice so appends never alias the original.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	return &out
}

// ModelRequest is what the orchestrator hands the language model.
type ModelRequest struct {
	System   string
	Messages []Message
	Tools    []tools.Definition
	// ToolsEnabled is false in the synthesis phase; the model must answer in
	// text and any tool calls it returns are ignored.
	ToolsEnabled bool
}

// ModelReply is either a final text, a set of tool calls, or both.
type ModelReply struct {
	Text      string
	ToolCalls []tools.Request
}

// Model is the language model capability.
type Model interface {
	Generate(ctx context.Context, req ModelRequest) (ModelReply, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, req ModelRequest) (ModelReply, error)

func (f ModelFunc) Generate(ctx context.Context, req ModelRequest) (ModelReply, error) {
	return f(ctx, req)
}

var (
	// ErrEmptyMessage rejects blank user input before any model call.
	ErrEmptyMessage = errors.New("conversation: message is empty")
	// ErrConversationNotFound is returned by history stores for unknown ids.
	ErrConversationNotFound = errors.New("conversation: unknown conversation")
	// ErrConversationBusy is returned when another turn holds the conversation
	// until the caller gives up.
	ErrConversationBusy = errors.New("conversation: another turn is in progress")
)

// Package session tracks per-conversation state: the retained message
// window and its persistence across requests.
package session

import (
	"sync"

	"github.com/promptdeck/prism/internal/types"
)

// DefaultWindowCap is the number of messages retained per conversation
// when no cap is configured.
const DefaultWindowCap = 10

// Window is a bounded FIFO of conversation messages. Messages enter in
// user/assistant pairs after a successful exchange; when the cap is
// exceeded the oldest pair is evicted so the remaining history always
// starts at a user turn.
//
// Methods are safe for concurrent use: the memory store hands the same
// pointer to every handler touching a session, and a reset can land
// while a chat turn is writing.
type Window struct {
	mu sync.Mutex

	Cap      int             `json:"cap"`
	Messages []types.Message `json:"messages"`
}

func NewWindow(cap int) *Window {
	if cap <= 0 {
		cap = DefaultWindowCap
	}
	return &Window{Cap: cap}
}

// AppendExchange records one completed user/assistant turn and evicts
// oldest pairs until the window fits its cap. Failed turns are never
// appended; callers only reach here after a successful provider response.
func (w *Window) AppendExchange(userContent, assistantContent string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Messages = append(w.Messages,
		types.Message{Role: types.RoleUser, Content: userContent},
		types.Message{Role: types.RoleAssistant, Content: assistantContent},
	)
	for len(w.Messages) > w.Cap {
		w.Messages = w.Messages[2:]
	}
}

// Snapshot returns a copy of the retained messages. Mutating the copy
// does not affect the window.
func (w *Window) Snapshot() []types.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.Messages) == 0 {
		return nil
	}
	out := make([]types.Message, len(w.Messages))
	copy(out, w.Messages)
	return out
}

// Clear drops all retained messages.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Messages = nil
}

func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.Messages)
}

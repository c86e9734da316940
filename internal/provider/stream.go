package provider

import "github.com/promptdeck/prism/internal/types"

// Event is one increment of a chat stream. Exactly one of Delta, Err, or
// Done is meaningful per event. After an Err or Done event the channel
// closes; a stream is finite and not restartable.
type Event struct {
	Delta string
	Err   error
	Done  bool
}

// ChatStream yields incremental chat output from a provider. Text already
// delivered stays with the caller even when the stream fails mid-way.
type ChatStream struct {
	events chan Event
	model  string
	usage  types.Usage
}

func NewChatStream(model string) *ChatStream {
	return &ChatStream{
		events: make(chan Event, 16),
		model:  model,
	}
}

// Events returns the channel of stream increments. The channel closes when
// the provider signals completion or fails.
func (s *ChatStream) Events() <-chan Event { return s.events }

// Model returns the provider-side model serving this stream.
func (s *ChatStream) Model() string { return s.model }

// Usage returns token accounting for the stream. Valid only after the
// events channel has closed.
func (s *ChatStream) Usage() types.Usage { return s.usage }

// Send delivers the next event. Producer side only.
func (s *ChatStream) Send(ev Event) { s.events <- ev }

// SetUsage records token accounting before Close.
func (s *ChatStream) SetUsage(u types.Usage) { s.usage = u }

// Close ends the stream; no Send may follow.
func (s *ChatStream) Close() { close(s.events) }

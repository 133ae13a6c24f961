// Package event models the inbound event stream: a closed hierarchy of typed
// events decoded from wire payloads by the factory in this package. Events
// are immutable after construction except for the stop-propagation latch.
//
// An event never outlives the callback invocation that received it; keep no
// references past the handler's return.
package event

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mirai-sdk/go-mirai/pkg/entity"
)

// ErrIllegalOperation marks deliberate hard guards against API misuse, such
// as asking a confess-talk toggle for its operator.
var ErrIllegalOperation = errors.New("illegal operation")

// Session is the slice of bot operations events need for their quick
// actions. *mirai.Bot implements it.
type Session interface {
	entity.API

	// RecallMessage recalls a previously sent message by id.
	RecallMessage(ctx context.Context, id int64) error

	// Post issues a session-scoped POST to an API path and returns the raw
	// response body after the wire status code has been checked.
	Post(ctx context.Context, path string, params map[string]any) (json.RawMessage, error)
}

// Event is the envelope shared by every variant in the hierarchy.
type Event interface {
	// EventType returns the wire type tag the event was decoded from.
	EventType() string
	// Raw returns the undecoded wire payload.
	Raw() json.RawMessage
	// StopPropagation sets the one-way latch signalling later handlers of a
	// multi-handler dispatch loop to be skipped. The library itself does not
	// act on it; the dispatch loop checks it between handler invocations.
	StopPropagation()
	// PropagationStopped reports the latch.
	PropagationStopped() bool
}

// Base carries the fields common to every event. Concrete variants embed it.
type Base struct {
	kind    string
	raw     json.RawMessage
	session Session
	stopped bool
}

func newBase(kind string, raw json.RawMessage, s Session) Base {
	return Base{kind: kind, raw: raw, session: s}
}

func (b *Base) EventType() string    { return b.kind }
func (b *Base) Raw() json.RawMessage { return b.raw }

// Session returns the bot session the event was received on.
func (b *Base) Session() Session { return b.session }

// StopPropagation latches the flag; there is no way to clear it.
func (b *Base) StopPropagation() { b.stopped = true }

func (b *Base) PropagationStopped() bool { return b.stopped }

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Handler consumes one raw payload from its channel.
type Handler func(ctx context.Context, payload []byte) error

// Registry maps each channel to exactly one typed decoder+handler pair,
// looked up by channel name before dispatch. Registration happens during
// wiring, before the listener starts.
type Registry struct {
	handlers map[Channel]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Channel]Handler)}
}

// Register binds channel to a raw handler. Last registration wins.
func (r *Registry) Register(channel Channel, handler Handler) {
	r.handlers[channel] = handler
}

// RegisterJSON binds channel to handle behind a typed JSON decoder, so
// handlers never see raw payloads for known channels.
func RegisterJSON[T any](r *Registry, channel Channel, handle func(ctx context.Context, event T) error) {
	r.Register(channel, func(ctx context.Context, payload []byte) error {
		var event T
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("decode %s payload: %w", channel, err)
		}
		return handle(ctx, event)
	})
}

// Channels lists every registered channel in stable order.
func (r *Registry) Channels() []Channel {
	out := make([]Channel, 0, len(r.handlers))
	for ch := range r.handlers {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dispatch routes one message to its channel's handler. Unknown channels and
// handler failures are errors for the caller to log; they never carry any
// instruction to stop consuming.
func (r *Registry) Dispatch(ctx context.Context, channel Channel, payload []byte) error {
	handler, ok := r.handlers[channel]
	if !ok {
		return fmt.Errorf("no handler registered for channel %q", channel)
	}
	return handler(ctx, payload)
}

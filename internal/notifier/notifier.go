package notifier

import "context"

// Handler processes a delivered event. Returning an error tells the broker
// path to negatively acknowledge the message; local delivery only logs it.
type Handler func(ctx context.Context, evt *Event) error

// Notifier is the pub/sub facility used by the workflow engine.
//
// Publish never fails the caller: broker unavailability degrades to
// local-only delivery. Subscribe always registers the handler for local
// delivery and additionally consumes from the broker when one is attached.
type Notifier interface {
	Publish(ctx context.Context, evt *Event)
	Subscribe(pattern string, handler Handler)
	Close() error
}

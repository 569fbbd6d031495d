// Package invalidation defines the port for sharing cache invalidations
// between client processes.
package invalidation

import "context"

// Handler is called with the resource name of a remote invalidation.
type Handler func(resource string)

// Broadcaster publishes and receives resource invalidations.
type Broadcaster interface {
	// Publish announces that resource changed on the server.
	Publish(ctx context.Context, resource string) error

	// Subscribe registers h for invalidations published by other processes.
	// The returned function cancels the subscription.
	Subscribe(h Handler) (cancel func(), err error)
}

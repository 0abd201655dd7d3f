// Package channel provides the typed pipes between the scene and the
// adapter.
package channel

import "context"

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	Send(T)
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	SendContext(ctx context.Context, v T) error
	TrySend(v T) bool
	Close()
}

// SenderFunc adapts a function to Sender.
type SenderFunc[T any] func(T)

func (f SenderFunc[T]) Send(v T) { f(v) }

// Tap returns a Sender that hands every value to observe before
// forwarding it to next.
func Tap[T any](next Sender[T], observe func(T)) Sender[T] {
	return SenderFunc[T](func(v T) {
		observe(v)
		next.Send(v)
	})
}

//go:build !debug

package channel

// New returns a buffered channel. Builds tagged debug return an
// unbuffered one to surface ordering bugs.
func New[T any](size int) Channel[T] {
	return NewBuffered[T](size)
}

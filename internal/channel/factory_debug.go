//go:build debug

package channel

// New ignores size and returns an unbuffered channel.
func New[T any](size int) Channel[T] {
	return NewUnbuffered[T]()
}

package reactive

import "sync"

// Subscription receives values published by the Observable it was created from.
type Subscription[T any] struct {
	c         chan T
	container *Observable[T]
	once      sync.Once
}

// Cancel removes subscription from container and closes the channel.
// Not calling this method may result in memory leak.
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() {
		s.container.delete(s)
		close(s.c)
	})
}

// Channel returns channel that can be used to read from observable.
func (s *Subscription[T]) Channel() <-chan T {
	return s.c
}

// Observable creates a container for subscribers.
// This works in single producer multiple consumer pattern.
// Publishing never blocks, subscriber with full buffer misses the value.
type Observable[T any] struct {
	mux         sync.RWMutex
	subscribers map[*Subscription[T]]struct{}
	size        int
}

// New creates Observable container that holds channels for all subscribers.
// size is the buffer size of each channel.
func New[T any](size int) *Observable[T] {
	return &Observable[T]{
		subscribers: make(map[*Subscription[T]]struct{}),
		size:        size,
	}
}

// Subscribe subscribes to the container.
func (o *Observable[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		c:         make(chan T, o.size),
		container: o,
	}
	o.mux.Lock()
	defer o.mux.Unlock()
	o.subscribers[sub] = struct{}{}
	return sub
}

// Publish publishes value to all subscribers and returns the count of subscribers that missed it.
func (o *Observable[T]) Publish(v T) int {
	o.mux.RLock()
	defer o.mux.RUnlock()
	var missed int
	for s := range o.subscribers {
		select {
		case s.c <- v:
		default:
			missed++
		}
	}
	return missed
}

func (o *Observable[T]) delete(s *Subscription[T]) {
	o.mux.Lock()
	defer o.mux.Unlock()
	delete(o.subscribers, s)
}

package observable

import (
	"sync"

	"github.com/fuad-daoud/discord-mirror/logger/dlog"
)

// Dispatcher receives notification deliveries. Post must not block on the
// delivery itself; the mutating goroutine never waits for subscribers.
//
// Containers post while holding the lock of the data they changed, so a FIFO
// dispatcher delivers changes to one list, or to one map key, in mutation
// order. Without a dispatcher, subscribers run on the writers' goroutines and
// concurrent writers may deliver out of order.
type Dispatcher interface {
	Post(fn func())
}

type Option func(*config)

type config struct {
	dispatcher Dispatcher
}

// WithDispatcher delivers notifications through d instead of on the mutating
// goroutine.
func WithDispatcher(d Dispatcher) Option {
	return func(c *config) {
		c.dispatcher = d
	}
}

func newConfig(opts []Option) config {
	c := config{}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Loop is a Dispatcher running every posted function on one goroutine, in
// the order they were posted. Its queue is unbounded so Post never blocks.
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

func NewLoop() *Loop {
	l := &Loop{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
}

// Flush blocks until everything posted before the call has run.
func (l *Loop) Flush() {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		<-l.done
		return
	}
	flushed := make(chan struct{})
	l.Post(func() { close(flushed) })
	select {
	case <-flushed:
	case <-l.done:
	}
}

// Close stops accepting work, runs what is already queued and returns once
// the loop goroutine has exited.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.cond.Broadcast()
	l.mu.Unlock()
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()
		l.call(fn)
	}
}

func (l *Loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			dlog.Error("notification handler panicked", "panic", r)
		}
	}()
	fn()
}

type subscriber[E any] struct {
	id uint64
	fn func(E)
}

// notifier fans events out to subscribers, inline or through a Dispatcher.
type notifier[E any] struct {
	mu         sync.RWMutex
	nextID     uint64
	subs       []subscriber[E]
	dispatcher Dispatcher
}

func (n *notifier[E]) subscribe(fn func(E)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscriber[E]{id: id, fn: fn})
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, sub := range n.subs {
			if sub.id == id {
				n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
				return
			}
		}
	}
}

func (n *notifier[E]) emit(events ...E) {
	n.mu.RLock()
	subs := n.subs
	n.mu.RUnlock()
	if len(subs) == 0 || len(events) == 0 {
		return
	}
	deliver := func() {
		for _, event := range events {
			for _, sub := range subs {
				sub.fn(event)
			}
		}
	}
	if n.dispatcher != nil {
		n.dispatcher.Post(deliver)
		return
	}
	deliver()
}

// Package observable provides thread-safe containers that report their
// changes to subscribers.
//
// Map is a keyed container whose key space is split into independently
// locked stripes, so operations on different keys rarely contend. List is an
// ordered container guarded by one reader/writer lock. Both raise Change
// notifications either synchronously on the mutating goroutine, after the
// data lock is released, or by posting them to a Dispatcher such as Loop
// while the lock is still held.
//
// Values implementing Cloner are cloned on the way in and on the way out.
//
// A batch (BeginBatchUpdate/EndBatchUpdate, nestable) suppresses every
// notification and replaces them with a single Reset when the outermost batch
// ends, provided at least one mutation changed state inside it.
package observable

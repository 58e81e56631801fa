package redis

import (
	"sync"
	"sync/atomic"
	"time"
)

// Command is the in-flight representation of one RESP command, one-shot or
// repeating. It is constructed by an Engine (Command, CommandSync, or
// CommandLoop) and is never constructed directly by callers.
//
// Identity (id, Argv, Shape, the user callback, Repeat/After, FreeOnReply)
// is immutable after construction. Pending, Status and the decoded reply
// are mutable state written by the Engine's loop goroutine (CommandSync
// also records NoReply from the caller's goroutine when its ctx ends) and
// read by callers after a happens-before edge through the user callback or
// the sync-bridge channel (see sync.go). Canceled is set by Cancel from any
// goroutine.
type Command struct {
	id          uint64
	argv        [][]byte
	shape       ReplyShape
	callback    func(*Command)
	repeat      time.Duration
	after       time.Duration
	freeOnReply bool
	engine      *Engine

	pending  atomic.Int32
	canceled atomic.Bool

	mu     sync.Mutex
	status ReplyStatus
	value  interface{}
	err    error
	raw    interface{}
}

// ID is the monotonically increasing identity assigned at construction;
// never reused within the process.
func (c *Command) ID() uint64 { return c.id }

// Argv is the ordered, binary-safe argument vector this command sends.
func (c *Command) Argv() [][]byte { return c.argv }

// Shape is the reply decoder this command's replies are run through.
func (c *Command) Shape() ReplyShape { return c.shape }

// Status returns the terminal status of the most recent reply.
func (c *Command) Status() ReplyStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Reply returns the decoded value of the most recent reply, valid only
// once Status() is Ok.
func (c *Command) Reply() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Err returns the error associated with the most recent reply, if any
// (set for ErrorReply, SendError, and the NoReply of a CommandSync whose
// ctx ended first).
func (c *Command) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// RawReply returns the undecoded wire value of the most recent reply,
// owned by the Command until it is freed.
func (c *Command) RawReply() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raw
}

// Pending is the number of submissions awaiting a reply.
func (c *Command) Pending() int32 { return c.pending.Load() }

// Canceled reports whether Cancel has been called.
func (c *Command) Canceled() bool { return c.canceled.Load() }

// Cancel marks a command for cancellation. A delayed or repeating command
// observes the flag on its next tick, stops scheduling further
// submissions, and is freed once Pending reaches zero. For a command
// already in flight (sent, awaiting its first and only reply), Cancel
// suppresses the user callback and the recording of that reply on the
// Command, and marks the record for automatic freeing once that reply
// arrives — it cannot recall the request already written to the wire.
func (c *Command) Cancel() {
	c.canceled.Store(true)
}

// Repeating reports whether this is a periodic (commandLoop) command.
func (c *Command) Repeating() bool { return c.repeat > 0 }

func (c *Command) setTerminal(status ReplyStatus, value interface{}, err error, raw interface{}) {
	c.mu.Lock()
	c.status = status
	c.value = value
	c.err = err
	c.raw = raw
	c.mu.Unlock()
}

func (c *Command) invoke() {
	if c.callback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.engine.logf(LevelError, "command %d callback panicked: %v", c.id, r)
		}
	}()
	c.callback(c)
}

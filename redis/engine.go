package redis

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opencensus.io/stats"

	"github.com/hmartiro/redox/redis/internal/observability"
	"github.com/hmartiro/redox/redis/internal/timewheel"
	"github.com/hmartiro/redox/redis/wire"
)

type submitReq struct {
	id    uint64
	shape ReplyShape
}

type freeReq struct {
	id    uint64
	shape ReplyShape
}

type wireReply struct {
	value interface{}
	err   error
}

// Engine owns one TCP or Unix connection to a RESP server, the loop
// goroutine driving it, and the Registry of commands in flight on it. An
// Engine is connect-once: construct, Connect, issue commands, Disconnect.
// Automatic reconnection is out of scope (spec.md §1 non-goals).
//
// All socket writes and all Registry deletion happen on the single loop
// goroutine spawned by Connect; a companion reader goroutine only reads
// replies off the socket and hands them to the loop. Callers reach the
// loop only through the
// channel-based submission and free queues and through atomic reads of
// the connection state, per spec.md §5.
type Engine struct {
	id          string
	network     string
	addr        string
	dialTimeout time.Duration

	stateCallback func(ConnectionState)
	logger        Logger

	state atomic.Int32

	registry *registry
	wheel    *timewheel.Wheel

	wireConn *wire.Conn

	submitCh  chan submitReq
	freeCh    chan freeReq
	rawSendCh chan [][]byte
	repliesCh chan wireReply
	stopCh    chan struct{}
	stopOnce  sync.Once
	closing   chan struct{}

	readerDone chan struct{}
	loopDone   chan struct{}

	connectOnce sync.Once
	connectOK   bool

	// loop-goroutine-only state — never touched from another goroutine.
	inflight    []*Command
	pendingFree map[uint64]bool

	// pubsubDispatch, when non-nil, makes this Engine a Subscriber's
	// connection: every incoming reply is routed here instead of through
	// the ordinary inflight/registry path (spec.md §4.6).
	pubsubDispatch func(interface{})
}

// NewEngine constructs an Engine that will connect over TCP to addr
// ("host:port") when Connect is called.
func NewEngine(addr string, opts ...EngineOption) *Engine {
	return newEngine("tcp", addr, opts...)
}

// NewUnixEngine constructs an Engine that will connect over a Unix domain
// socket at path when Connect is called.
func NewUnixEngine(path string, opts ...EngineOption) *Engine {
	return newEngine("unix", path, opts...)
}

func newEngine(network, addr string, opts ...EngineOption) *Engine {
	e := &Engine{
		network:     network,
		addr:        addr,
		id:          uuid.NewString(),
		dialTimeout: 5 * time.Second,
		logger:      nopLogger{},
		registry:    newRegistry(),
		wheel:       timewheel.New(10*time.Millisecond, 512),
		submitCh:    make(chan submitReq, 1024),
		freeCh:      make(chan freeReq, 256),
		rawSendCh:   make(chan [][]byte, 64),
		repliesCh:   make(chan wireReply, 256),
		stopCh:      make(chan struct{}),
		closing:     make(chan struct{}),
		pendingFree: make(map[uint64]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.wheel.Start()
	return e
}

// ID is the random instance identifier this Engine tags its logs and
// opencensus measurements with.
func (e *Engine) ID() string { return e.id }

// State returns the current connection state.
func (e *Engine) State() ConnectionState { return ConnectionState(e.state.Load()) }

func (e *Engine) setState(s ConnectionState) {
	e.state.Store(int32(s))
	if e.stateCallback != nil {
		e.stateCallback(s)
	}
}

func (e *Engine) logf(level Level, format string, args ...interface{}) {
	e.logger.Logf(level, "[%s] "+format, append([]interface{}{e.id}, args...)...)
}

func (e *Engine) obsCtx() context.Context {
	return observability.WithEngineTag(context.Background(), e.id)
}

// obsCtxForCommand layers the command verb (argv[0]) onto obsCtx, feeding
// the KeyCommand-tagged views commands_submitted and commands_sent their
// per-verb breakdown.
func (e *Engine) obsCtxForCommand(cmd *Command) context.Context {
	verb := "unknown"
	if len(cmd.argv) > 0 {
		verb = string(cmd.argv[0])
	}
	return observability.WithCommandTag(e.obsCtx(), verb)
}

// Connect dials the server and, on success, starts the loop and reader
// goroutines. It returns only once the outcome is known: true and state
// Connected, or false and state ConnectError. Connect may be called only
// once per Engine; later calls return the first outcome.
func (e *Engine) Connect(ctx context.Context) bool {
	e.connectOnce.Do(func() {
		e.connectOK = e.doConnect(ctx)
	})
	return e.connectOK
}

func (e *Engine) doConnect(ctx context.Context) bool {
	start := time.Now()
	dialer := net.Dialer{Timeout: e.dialTimeout}
	nc, err := dialer.DialContext(ctx, e.network, e.addr)
	octx := e.obsCtx()
	stats.Record(octx, observability.MDials.M(1))
	if err != nil {
		stats.Record(octx, observability.MDialErrors.M(1))
		e.logf(LevelError, "connect to %s %s failed: %v", e.network, e.addr, err)
		e.setState(ConnectError)
		return false
	}
	stats.Record(octx, observability.MDialLatencySeconds.M(time.Since(start).Seconds()))

	e.wireConn = wire.NewConn(nc)
	e.readerDone = make(chan struct{})
	e.loopDone = make(chan struct{})

	go e.runReader()
	go e.runLoop()

	e.setState(Connected)
	return true
}

// Disconnect requests an orderly shutdown and blocks until it completes.
// Safe to call more than once or concurrently; later calls simply wait
// alongside the first.
func (e *Engine) Disconnect() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.Wait()
}

// Wait blocks until the loop goroutine has exited, however it was told to
// (Disconnect, or an unsolicited connection failure). It does not itself
// request shutdown.
func (e *Engine) Wait() {
	if e.loopDone == nil {
		return
	}
	<-e.loopDone
}

func (e *Engine) runReader() {
	defer close(e.readerDone)
	for {
		v, err := e.wireConn.Receive()
		if err != nil {
			e.sendReply(wireReply{err: err})
			return
		}
		if !e.sendReply(wireReply{value: v}) {
			return
		}
	}
}

func (e *Engine) sendReply(wr wireReply) bool {
	select {
	case e.repliesCh <- wr:
		return true
	case <-e.closing:
		return false
	}
}

func (e *Engine) runLoop() {
	defer close(e.loopDone)
	e.pendingFree = make(map[uint64]bool)
	for {
		select {
		case req := <-e.submitCh:
			if cmd, ok := e.registry.lookup(req.id, req.shape); ok {
				e.sendCommand(cmd)
			}

		case req := <-e.freeCh:
			e.handleFree(req)

		case argv := <-e.rawSendCh:
			if _, err := e.wireConn.Send(argv); err != nil {
				e.logf(LevelError, "pubsub send failed: %v", err)
			}

		case wr := <-e.repliesCh:
			if wr.err != nil {
				e.shutdown(wr.err)
				return
			}
			e.handleReply(wr)

		case <-e.stopCh:
			e.shutdown(nil)
			return
		}
	}
}

func (e *Engine) sendCommand(cmd *Command) {
	n, err := e.wireConn.Send(cmd.argv)
	octx := e.obsCtx()
	stats.Record(octx, observability.MBytesWritten.M(int64(n)))
	if err != nil {
		e.logf(LevelError, "command %d send failed: %v", cmd.id, err)
		cmd.setTerminal(SendError, nil, err, nil)
		if !cmd.Canceled() {
			cmd.invoke()
		}
		e.maybeFreeAfterTerminal(cmd)
		return
	}
	cmd.pending.Add(1)
	e.inflight = append(e.inflight, cmd)
	stats.Record(e.obsCtxForCommand(cmd), observability.MCommandsSent.M(1))
}

func (e *Engine) handleReply(wr wireReply) {
	if e.pubsubDispatch != nil {
		e.pubsubDispatch(wr.value)
		return
	}

	if len(e.inflight) == 0 {
		e.logf(LevelWarning, "reply arrived with no command in flight, dropping")
		return
	}
	cmd := e.inflight[0]
	e.inflight = e.inflight[1:]

	stats.Record(e.obsCtx(), observability.MRepliesReceived.M(1))

	value, status, replyErr := decode(cmd.shape, wr.value)
	if !cmd.Canceled() {
		cmd.setTerminal(status, value, replyErr, wr.value)
		cmd.invoke()
	}
	cmd.pending.Add(-1)
	e.maybeFreeAfterTerminal(cmd)
}

// maybeFreeAfterTerminal applies spec.md §4.3/§4.4's freeing rule once a
// command's pending count may have reached zero: a one-shot command with
// freeOnReply set, a canceled command of any kind, or a command someone
// already asked to Free while it still had replies pending.
func (e *Engine) maybeFreeAfterTerminal(cmd *Command) {
	if cmd.pending.Load() != 0 {
		return
	}
	shouldFree := cmd.Canceled() || (cmd.freeOnReply && !cmd.Repeating())
	if e.pendingFree[cmd.id] {
		shouldFree = true
		delete(e.pendingFree, cmd.id)
	}
	if shouldFree {
		e.registry.remove(cmd.id, cmd.shape)
	}
}

func (e *Engine) handleFree(req freeReq) {
	cmd, ok := e.registry.lookup(req.id, req.shape)
	if !ok {
		return // already freed — idempotent, per spec.md §4.4
	}
	if cmd.pending.Load() == 0 {
		e.registry.remove(req.id, req.shape)
		return
	}
	e.pendingFree[req.id] = true
}

func (e *Engine) shutdown(cause error) {
	close(e.closing)

drain:
	for {
		select {
		case <-e.submitCh:
		default:
			break drain
		}
	}

	for _, cmd := range e.registry.drain() {
		e.wheel.Cancel(cmd.id)
	}
	e.wheel.Stop()

	e.wireConn.Close()
	<-e.readerDone

	stats.Record(e.obsCtx(), observability.MDisconnects.M(1))
	if cause != nil {
		e.logf(LevelError, "connection lost: %v", cause)
		e.setState(DisconnectError)
	} else {
		e.setState(Disconnected)
	}
}

func (e *Engine) enqueueSubmit(cmd *Command) {
	select {
	case e.submitCh <- submitReq{id: cmd.id, shape: cmd.shape}:
	case <-e.closing:
	}
}

func (e *Engine) requestFree(id uint64, shape ReplyShape) {
	select {
	case e.freeCh <- freeReq{id: id, shape: shape}:
	case <-e.closing:
	}
}

// sendRaw writes argv to the wire without registering a Command — the
// path a Subscriber uses for SUBSCRIBE/PSUBSCRIBE/UNSUBSCRIBE/PUNSUBSCRIBE,
// whose replies are demultiplexed by pubsubDispatch rather than matched
// FIFO against an inflight queue.
func (e *Engine) sendRaw(argv [][]byte) {
	select {
	case e.rawSendCh <- argv:
	case <-e.closing:
	}
}

func (e *Engine) schedule(cmd *Command) {
	switch {
	case cmd.repeat > 0:
		first := cmd.after
		if first <= 0 {
			first = cmd.repeat
		}
		e.wheel.ScheduleAfter(cmd.id, first, func() { e.onTick(cmd) })
	case cmd.after > 0:
		e.wheel.ScheduleAfter(cmd.id, cmd.after, func() { e.onTick(cmd) })
	default:
		e.enqueueSubmit(cmd)
	}
}

func (e *Engine) onTick(cmd *Command) {
	if cmd.Canceled() {
		e.requestFree(cmd.id, cmd.shape)
		return
	}
	e.enqueueSubmit(cmd)
	if cmd.Repeating() {
		e.wheel.ScheduleAfter(cmd.id, cmd.repeat, func() { e.onTick(cmd) })
	}
}

func (e *Engine) create(argv [][]byte, shape ReplyShape, cb func(*Command), repeat, after time.Duration, freeOnReply bool) (*Command, error) {
	if e.pubsubDispatch != nil {
		return nil, ErrSubscriberMode
	}
	if e.State() != Connected {
		return nil, ErrNotConnected
	}
	cmd := &Command{
		argv:        argv,
		shape:       shape,
		callback:    cb,
		repeat:      repeat,
		after:       after,
		freeOnReply: freeOnReply,
		engine:      e,
	}
	e.registry.reserve(cmd)
	stats.Record(e.obsCtxForCommand(cmd), observability.MCommandsSubmitted.M(1))
	e.schedule(cmd)
	return cmd, nil
}

// Command issues a fire-and-forget one-shot command. cb, if non-nil, is
// invoked exactly once with the terminal reply; the Engine frees the
// Command automatically afterward.
func (e *Engine) Command(argv [][]byte, shape ReplyShape, cb func(*Command)) (*Command, error) {
	return e.create(argv, shape, cb, 0, 0, true)
}

// CommandLoop issues a periodic command: the first submission happens
// after `after` has elapsed (or after `repeat`, if after is zero), and
// every `repeat` thereafter until Cancel is called. The caller owns the
// returned Command and must Free it once canceled and drained.
func (e *Engine) CommandLoop(argv [][]byte, shape ReplyShape, cb func(*Command), repeat, after time.Duration) (*Command, error) {
	if repeat <= 0 {
		return nil, errors.New("redox: CommandLoop requires a positive repeat interval")
	}
	return e.create(argv, shape, cb, repeat, after, false)
}

// Free schedules cmd for destruction: the request is queued to the loop
// goroutine, which removes it from the Registry once Pending reaches
// zero. Idempotent — safe to call more than once on the same Command.
func (e *Engine) Free(cmd *Command) {
	if cmd == nil {
		return
	}
	e.requestFree(cmd.id, cmd.shape)
}

// Publish issues PUBLISH topic msg. pubCB fires on a successful publish,
// errCB on any non-Ok status (including submission failure).
func (e *Engine) Publish(topic, msg string, pubCB func(topic, msg string), errCB func(topic string, status ReplyStatus)) {
	argv := [][]byte{[]byte("PUBLISH"), []byte(topic), []byte(msg)}
	_, err := e.Command(argv, ShapeLong, func(cmd *Command) {
		if cmd.Status() != Ok {
			if errCB != nil {
				errCB(topic, cmd.Status())
			}
			return
		}
		if pubCB != nil {
			pubCB(topic, msg)
		}
	})
	if err != nil && errCB != nil {
		errCB(topic, SendError)
	}
}

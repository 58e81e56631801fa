package redis

import (
	"context"
	"sync"

	"go.opencensus.io/stats"

	"github.com/hmartiro/redox/redis/internal/observability"
)

// subscription is everything a Subscribe/PSubscribe call registers for one
// topic: the message callback plus the optional confirmation and error
// callbacks spec.md §6 lists for subscribe/psubscribe.
type subscription struct {
	msgCh   func(topicOrChannel, channelOrMessage string, message []byte)
	subCb   func(topic string)
	unsubCb func(topic string)
	errCb   func(topic string, status ReplyStatus)
}

// Subscriber is a dedicated Engine running in pub/sub mode: its loop
// goroutine routes every inbound reply through dispatch instead of the
// ordinary FIFO matching against in-flight commands, because SUBSCRIBE and PSUBSCRIBE
// produce an unbounded stream of unsolicited message frames with no 1:1
// relationship to a Send — see spec.md §4.6 and DESIGN.md.
//
// A Subscriber's Engine rejects ordinary commands (Command, CommandSync,
// CommandLoop) with ErrSubscriberMode; Publish belongs on a plain Engine,
// not a Subscriber, since publishing and subscribing share nothing but
// the wire format.
type Subscriber struct {
	engine *Engine

	mu       sync.Mutex
	channels map[string]*subscription
	patterns map[string]*subscription
}

// NewSubscriber constructs a Subscriber that will connect over TCP.
func NewSubscriber(addr string, opts ...EngineOption) *Subscriber {
	return newSubscriber("tcp", addr, opts...)
}

// NewUnixSubscriber constructs a Subscriber that will connect over a Unix
// domain socket.
func NewUnixSubscriber(path string, opts ...EngineOption) *Subscriber {
	return newSubscriber("unix", path, opts...)
}

func newSubscriber(network, addr string, opts ...EngineOption) *Subscriber {
	e := newEngine(network, addr, opts...)
	s := &Subscriber{
		engine:   e,
		channels: make(map[string]*subscription),
		patterns: make(map[string]*subscription),
	}
	e.pubsubDispatch = s.dispatch
	return s
}

// Connect, Disconnect, Wait, State, and ID mirror Engine's — a Subscriber
// is itself just an Engine configured for pub/sub, with a narrower API.
func (s *Subscriber) Connect(ctx context.Context) bool { return s.engine.Connect(ctx) }
func (s *Subscriber) Disconnect()                      { s.engine.Disconnect() }
func (s *Subscriber) Wait()                            { s.engine.Wait() }
func (s *Subscriber) State() ConnectionState           { return s.engine.State() }
func (s *Subscriber) ID() string                       { return s.engine.ID() }

// Subscribe registers msgCb for messages published to channel and issues
// SUBSCRIBE. subCb and unsubCb are optional (nil is fine) and fire on the
// subscribe confirmation frame and the eventual unsubscribe confirmation
// frame, respectively. errCb is optional and is stored with the
// subscription, but nothing invokes it: a failed SUBSCRIBE send is only
// logged by the Engine's loop goroutine.
//
// Subscribing to a channel already registered is a no-op, logged at
// Warning (spec.md §4.6/§9): the caller cannot tell "double subscribe"
// apart from "two callers want the same channel" from the wire protocol
// alone, so this is deliberately not an error.
func (s *Subscriber) Subscribe(channel string, msgCb func(channel string, message []byte), subCb, unsubCb func(channel string), errCb func(channel string, status ReplyStatus)) {
	s.subscribeBase(s.channels, "SUBSCRIBE", channel, func(ch, _ string, m []byte) { msgCb(ch, m) }, subCb, unsubCb, errCb)
}

// PSubscribe registers msgCb for messages published to any channel
// matching pattern and issues PSUBSCRIBE. See Subscribe for the optional
// callbacks.
func (s *Subscriber) PSubscribe(pattern string, msgCb func(pattern, channel string, message []byte), subCb, unsubCb func(pattern string), errCb func(pattern string, status ReplyStatus)) {
	s.subscribeBase(s.patterns, "PSUBSCRIBE", pattern, func(a, b string, m []byte) { msgCb(a, b, m) }, subCb, unsubCb, errCb)
}

func (s *Subscriber) subscribeBase(set map[string]*subscription, cmdName, topic string, msgCb func(string, string, []byte), subCb, unsubCb func(string), errCb func(string, ReplyStatus)) {
	s.mu.Lock()
	if _, exists := set[topic]; exists {
		s.mu.Unlock()
		s.engine.logf(LevelWarning, "%s %q ignored, already subscribed", cmdName, topic)
		return
	}
	set[topic] = &subscription{msgCh: msgCb, subCb: subCb, unsubCb: unsubCb, errCb: errCb}
	s.mu.Unlock()
	s.engine.sendRaw([][]byte{[]byte(cmdName), []byte(topic)})
}

// Unsubscribe issues UNSUBSCRIBE for channel. errCb, if non-nil, replaces
// the subscription's stored errCb but is not invoked (a failed send is
// only logged); channel is removed from the subscribed set only once the
// unsubscribe confirmation frame arrives (spec.md §4.6).
// Unsubscribing from a channel not currently subscribed to is a no-op,
// logged at Warning.
func (s *Subscriber) Unsubscribe(channel string, errCb func(channel string, status ReplyStatus)) {
	s.unsubscribeBase(s.channels, "UNSUBSCRIBE", channel, errCb)
}

// PUnsubscribe issues PUNSUBSCRIBE for pattern. See Unsubscribe.
func (s *Subscriber) PUnsubscribe(pattern string, errCb func(pattern string, status ReplyStatus)) {
	s.unsubscribeBase(s.patterns, "PUNSUBSCRIBE", pattern, errCb)
}

func (s *Subscriber) unsubscribeBase(set map[string]*subscription, cmdName, topic string, errCb func(string, ReplyStatus)) {
	s.mu.Lock()
	sub, exists := set[topic]
	if exists && errCb != nil {
		sub.errCb = errCb
	}
	s.mu.Unlock()
	if !exists {
		s.engine.logf(LevelWarning, "%s %q ignored, not subscribed", cmdName, topic)
		return
	}
	s.engine.sendRaw([][]byte{[]byte(cmdName), []byte(topic)})
}

// dispatch runs on the Engine's loop goroutine (called directly from
// handleReply), demultiplexing every inbound array by its shape per
// spec.md §4.6:
//
//	3 elements, first "subscribe"/"unsubscribe"/"psubscribe"/
//	  "punsubscribe", last an integer                             -> confirmation
//	3 elements, first "message"                                   -> channel message
//	4 elements, first "pmessage"                                  -> pattern message
func (s *Subscriber) dispatch(raw interface{}) {
	octx := observability.WithEngineTag(context.Background(), s.engine.ID())

	arr, ok := raw.([]interface{})
	if !ok {
		s.engine.logf(LevelWarning, "pubsub frame was not an array, dropping")
		stats.Record(octx, observability.MPubSubUnknownFrames.M(1))
		return
	}
	stats.Record(octx, observability.MPubSubFrames.M(1))

	switch len(arr) {
	case 3:
		kind, _ := asString(arr[0])
		switch kind {
		case "subscribe":
			s.onConfirm(s.channels, arr, true)
		case "unsubscribe":
			s.onConfirm(s.channels, arr, false)
		case "psubscribe":
			s.onConfirm(s.patterns, arr, true)
		case "punsubscribe":
			s.onConfirm(s.patterns, arr, false)
		case "message":
			channel, _ := asString(arr[1])
			payload, _ := asBytes(arr[2])
			s.mu.Lock()
			sub := s.channels[channel]
			s.mu.Unlock()
			if sub != nil && sub.msgCh != nil {
				sub.msgCh(channel, "", payload)
			}
		default:
			s.engine.logf(LevelWarning, "unrecognized 3-element pubsub frame kind %q", kind)
			stats.Record(octx, observability.MPubSubUnknownFrames.M(1))
		}

	case 4:
		kind, _ := asString(arr[0])
		switch kind {
		case "pmessage":
			pattern, _ := asString(arr[1])
			channel, _ := asString(arr[2])
			payload, _ := asBytes(arr[3])
			s.mu.Lock()
			sub := s.patterns[pattern]
			s.mu.Unlock()
			if sub != nil && sub.msgCh != nil {
				sub.msgCh(pattern, channel, payload)
			}
		default:
			s.engine.logf(LevelWarning, "unrecognized 4-element pubsub frame kind %q", kind)
			stats.Record(octx, observability.MPubSubUnknownFrames.M(1))
		}

	default:
		s.engine.logf(LevelWarning, "pubsub frame of unexpected arity %d", len(arr))
		stats.Record(octx, observability.MPubSubUnknownFrames.M(1))
	}
}

// onConfirm handles a subscribe/unsubscribe (or p- variant) confirmation
// frame: arr is {kind, topic, count}. Unsubscribe confirmations are the
// only place a topic is actually removed from its set, per spec.md §4.6.
func (s *Subscriber) onConfirm(set map[string]*subscription, arr []interface{}, subscribing bool) {
	topic, _ := asString(arr[1])

	s.mu.Lock()
	sub, ok := set[topic]
	if ok && !subscribing {
		delete(set, topic)
	}
	s.mu.Unlock()

	if !ok || sub == nil {
		return
	}
	if subscribing {
		if sub.subCb != nil {
			sub.subCb(topic)
		}
		return
	}
	if sub.unsubCb != nil {
		sub.unsubCb(topic)
	}
}

func asBytes(v interface{}) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		return []byte(b), true
	default:
		return nil, false
	}
}

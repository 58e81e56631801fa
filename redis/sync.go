package redis

import "context"

// CommandSync issues a one-shot command and blocks until its terminal
// reply arrives or ctx is done, whichever comes first. Passing
// context.Background() reproduces the original blocking behavior with no
// bound; passing a context with a deadline or cancellation gives the
// bounded-wait variant spec.md §5 leaves to implementations.
//
// Per spec.md §4.4/§4.5, the returned Command is owned by the caller:
// call Engine.Free on it once its Status/Reply have been read. If ctx is
// done first, the returned Command has Status NoReply and Err ctx.Err();
// the in-flight request already written to the wire cannot be recalled,
// so its eventual reply (if any) is decoded and discarded without
// invoking a callback.
func (e *Engine) CommandSync(ctx context.Context, argv [][]byte, shape ReplyShape) (*Command, error) {
	if e.pubsubDispatch != nil {
		return nil, ErrSubscriberMode
	}
	if e.State() != Connected {
		return nil, ErrNotConnected
	}

	done := make(chan struct{})
	cmd := &Command{
		argv:        argv,
		shape:       shape,
		freeOnReply: false,
		engine:      e,
	}
	cmd.callback = func(*Command) { close(done) }

	e.registry.reserve(cmd)
	e.enqueueSubmit(cmd)

	select {
	case <-done:
	case <-ctx.Done():
		cmd.Cancel()
		cmd.setTerminal(NoReply, nil, ctx.Err(), nil)
	}
	return cmd, nil
}

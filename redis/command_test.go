package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandSetTerminalAndAccessors(t *testing.T) {
	c := &Command{shape: ShapeString}
	c.setTerminal(Ok, []byte("hi"), nil, []byte("hi"))

	assert.Equal(t, Ok, c.Status())
	assert.Equal(t, []byte("hi"), c.Reply())
	assert.NoError(t, c.Err())
	assert.Equal(t, []byte("hi"), c.RawReply())
}

func TestCommandInvokeCallsCallbackOnce(t *testing.T) {
	calls := 0
	c := &Command{
		shape:    ShapeString,
		engine:   &Engine{logger: nopLogger{}},
		callback: func(*Command) { calls++ },
	}
	c.invoke()
	assert.Equal(t, 1, calls)
}

func TestCommandInvokeRecoversPanickingCallback(t *testing.T) {
	c := &Command{
		shape:  ShapeString,
		engine: &Engine{logger: nopLogger{}},
		callback: func(*Command) {
			panic("boom")
		},
	}
	assert.NotPanics(t, func() { c.invoke() })
}

func TestCommandCancelAndRepeating(t *testing.T) {
	c := &Command{shape: ShapeString}
	assert.False(t, c.Canceled())
	c.Cancel()
	assert.True(t, c.Canceled())

	assert.False(t, c.Repeating())
	c.repeat = 1
	assert.True(t, c.Repeating())
}

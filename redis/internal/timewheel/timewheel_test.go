package timewheel

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleAfterFiresOnce(t *testing.T) {
	w := New(10*time.Millisecond, 8)
	w.Start()
	defer w.Stop()

	var fired int32
	w.ScheduleAfter(1, 30*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	time.Sleep(150 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&fired))
}

func TestScheduleEveryRepeats(t *testing.T) {
	w := New(5*time.Millisecond, 8)
	w.Start()
	defer w.Stop()

	var fired int32
	w.ScheduleEvery(2, 10*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	time.Sleep(120 * time.Millisecond)
	w.Cancel(2)
	n := atomic.LoadInt32(&fired)
	assert.GreaterOrEqual(t, n, int32(5))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, atomic.LoadInt32(&fired), "canceled task must not fire again")
}

func TestCancelBeforeFire(t *testing.T) {
	w := New(10*time.Millisecond, 8)
	w.Start()
	defer w.Stop()

	var fired int32
	w.ScheduleAfter(3, 50*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})
	w.Cancel(3)

	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&fired))
}

// Package timewheel schedules delayed and repeating work for the loop
// goroutine of an Engine. It is the timer machinery behind command.go's
// repeat/after intervals: a Command due "after" seconds from now, or every
// "repeat" seconds, is represented here as a single task keyed by the
// command's id so it can be canceled in O(1) without scanning every slot.
package timewheel

import (
	"container/list"
	"log"
	"time"
)

// Task is one scheduled job. Repeat re-arms the task at the same delay
// after it fires; a zero Repeat means the task fires once and is dropped.
type Task struct {
	delay  time.Duration
	repeat bool
	round  int
	key    uint64
	job    func()
}

// Wheel is a single hashed timer wheel ticking on its own goroutine.
// All public methods are safe to call from any goroutine; the wheel
// communicates with its loop via channels rather than shared state.
type Wheel struct {
	interval time.Duration
	ticker   *time.Ticker

	slots      []*list.List
	currentPos int
	slotNum    int

	addCh    chan Task
	removeCh chan uint64
	stopCh   chan struct{}

	index map[uint64]int // task key -> slot index, for O(1) cancellation
}

// New returns a stopped Wheel; call Start to begin ticking. interval is the
// wheel's resolution and slotNum its number of slots, so the wheel covers
// delays up to interval*slotNum per revolution (longer delays wrap around
// for additional rounds).
func New(interval time.Duration, slotNum int) *Wheel {
	w := &Wheel{
		interval: interval,
		slots:    make([]*list.List, slotNum),
		slotNum:  slotNum,
		addCh:    make(chan Task),
		removeCh: make(chan uint64),
		stopCh:   make(chan struct{}),
		index:    make(map[uint64]int),
	}
	for i := range w.slots {
		w.slots[i] = list.New()
	}
	return w
}

// Start begins ticking on a new goroutine. Must be called at most once.
func (w *Wheel) Start() {
	w.ticker = time.NewTicker(w.interval)
	go w.loop()
}

// Stop halts the wheel's goroutine. Pending tasks are dropped, never run.
func (w *Wheel) Stop() {
	close(w.stopCh)
}

// ScheduleAfter arranges for job to run once, after delay has elapsed.
func (w *Wheel) ScheduleAfter(key uint64, delay time.Duration, job func()) {
	w.addCh <- Task{delay: delay, key: key, job: job}
}

// ScheduleEvery arranges for job to run every interval, first firing after
// the same interval has elapsed (a command loop has no immediate tick).
func (w *Wheel) ScheduleEvery(key uint64, interval time.Duration, job func()) {
	w.addCh <- Task{delay: interval, repeat: true, key: key, job: job}
}

// Cancel removes a pending or repeating task by key. A no-op if the key is
// unknown (already fired, already canceled, or never scheduled).
func (w *Wheel) Cancel(key uint64) {
	w.removeCh <- key
}

func (w *Wheel) loop() {
	for {
		select {
		case <-w.stopCh:
			w.ticker.Stop()
			return
		case <-w.ticker.C:
			w.tick()
		case task := <-w.addCh:
			w.add(task)
		case key := <-w.removeCh:
			w.remove(key)
		}
	}
}

func (w *Wheel) tick() {
	slot := w.slots[w.currentPos]
	for e := slot.Front(); e != nil; {
		next := e.Next()
		task := e.Value.(Task)
		if task.round > 0 {
			task.round--
			e.Value = task
			e = next
			continue
		}

		slot.Remove(e)
		delete(w.index, task.key)
		go safeRun(task.job)
		if task.repeat {
			w.add(Task{delay: task.delay, repeat: true, key: task.key, job: task.job})
		}
		e = next
	}

	if w.currentPos == w.slotNum-1 {
		w.currentPos = 0
	} else {
		w.currentPos++
	}
}

func safeRun(job func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("redox: timewheel task panicked: %v", r)
		}
	}()
	job()
}

func (w *Wheel) add(task Task) {
	round, slot := w.roundAndSlot(task.delay)
	task.round = round
	w.slots[slot].PushBack(task)
	w.index[task.key] = slot
}

func (w *Wheel) remove(key uint64) {
	slot, ok := w.index[key]
	if !ok {
		return
	}
	l := w.slots[slot]
	for e := l.Front(); e != nil; e = e.Next() {
		if e.Value.(Task).key == key {
			l.Remove(e)
			break
		}
	}
	delete(w.index, key)
}

func (w *Wheel) roundAndSlot(delay time.Duration) (round, slot int) {
	ticks := int(delay / w.interval)
	if ticks < 1 {
		ticks = 1
	}
	round = ticks / w.slotNum
	slot = (w.currentPos + ticks) % w.slotNum
	return round, slot
}

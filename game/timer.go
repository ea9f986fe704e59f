package game

import "time"

type timerKind int

const (
	timerQuestionDeadline timerKind = iota
	timerNextQuestion
)

type timerEvent struct {
	kind       timerKind
	generation uint64
}

// roundTimer keeps at most one pending deadline for a room. Every arm or
// disarm bumps the generation, so an event from an older timer that was
// already on its way is rejected by accept.
type roundTimer struct {
	clock      Clock
	deliver    func(timerEvent)
	pending    Timer
	armed      bool
	generation uint64
}

func newRoundTimer(clock Clock, deliver func(timerEvent)) *roundTimer {
	return &roundTimer{clock: clock, deliver: deliver}
}

func (t *roundTimer) arm(d time.Duration, kind timerKind) {
	t.disarm()
	ev := timerEvent{kind: kind, generation: t.generation}
	deliver := t.deliver
	t.armed = true
	t.pending = t.clock.AfterFunc(d, func() { deliver(ev) })
}

func (t *roundTimer) disarm() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.armed = false
	t.generation++
}

// accept reports whether ev belongs to the currently armed timer and, if so,
// consumes it.
func (t *roundTimer) accept(ev timerEvent) bool {
	if !t.armed || ev.generation != t.generation {
		return false
	}
	t.armed = false
	t.pending = nil
	t.generation++
	return true
}

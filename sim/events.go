//go:build !tinygo

package sim

// Event is an action scheduled on the virtual clock.
type Event struct {
	WakeTime uint64
	Handler  func(*Event) uint8
	Next     *Event
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// eventQueue keeps events sorted by WakeTime. Events due at the same time
// run in the order they were scheduled.
type eventQueue struct {
	head *Event
}

// schedule inserts e in sorted order by WakeTime
func (q *eventQueue) schedule(e *Event) {
	if q.head == nil || e.WakeTime < q.head.WakeTime {
		e.Next = q.head
		q.head = e
		return
	}

	current := q.head
	for current.Next != nil && current.Next.WakeTime <= e.WakeTime {
		current = current.Next
	}

	e.Next = current.Next
	current.Next = e
}

// nextWake returns the wake time of the earliest event.
func (q *eventQueue) nextWake() (uint64, bool) {
	if q.head == nil {
		return 0, false
	}
	return q.head.WakeTime, true
}

// popDue removes and returns the earliest event if it is due at or before now.
func (q *eventQueue) popDue(now uint64) *Event {
	if q.head == nil || q.head.WakeTime > now {
		return nil
	}
	e := q.head
	q.head = e.Next
	e.Next = nil // Clear Next pointer to avoid circular references
	return e
}

// run invokes e and reschedules it if the handler asks for it.
func (q *eventQueue) run(e *Event) {
	if e.Handler(e) == SF_RESCHEDULE {
		q.schedule(e)
	}
}

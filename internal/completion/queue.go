package completion

// laneQueue is a bounded FIFO with a high and a normal lane. Pops drain the
// high lane first. When full, the oldest events across both lanes are
// dropped. Callers synchronize access.
type laneQueue struct {
	high    []Event
	normal  []Event
	max     int
	evict   int
	nextSeq uint64
}

func newLaneQueue(max, evict int) *laneQueue {
	if evict < 1 {
		evict = 1
	}
	return &laneQueue{max: max, evict: evict}
}

func (q *laneQueue) len() int {
	return len(q.high) + len(q.normal)
}

// push appends ev and returns how many old events were dropped to make room.
func (q *laneQueue) push(ev Event) int {
	dropped := 0
	if q.len() >= q.max {
		dropped = q.dropOldest(q.evict)
	}

	q.nextSeq++
	ev.seq = q.nextSeq
	if ev.Priority == PriorityHigh {
		q.high = append(q.high, ev)
	} else {
		q.normal = append(q.normal, ev)
	}
	return dropped
}

func (q *laneQueue) dropOldest(n int) int {
	dropped := 0
	for dropped < n && q.len() > 0 {
		switch {
		case len(q.high) == 0:
			q.normal = q.normal[1:]
		case len(q.normal) == 0:
			q.high = q.high[1:]
		case q.high[0].seq < q.normal[0].seq:
			q.high = q.high[1:]
		default:
			q.normal = q.normal[1:]
		}
		dropped++
	}
	return dropped
}

func (q *laneQueue) pop(n int) []Event {
	if n > q.len() {
		n = q.len()
	}
	if n == 0 {
		return nil
	}

	out := make([]Event, 0, n)
	take := n
	if take > len(q.high) {
		take = len(q.high)
	}
	out = append(out, q.high[:take]...)
	q.high = q.high[take:]

	take = n - len(out)
	out = append(out, q.normal[:take]...)
	q.normal = q.normal[take:]
	return out
}

// snapshot returns the queued events in drain order.
func (q *laneQueue) snapshot() []Event {
	out := make([]Event, 0, q.len())
	out = append(out, q.high...)
	return append(out, q.normal...)
}

package orchestrator

import "sort"

// readyQueue holds ready task IDs ordered by canonical topological position.
// Pop always returns the lowest position, so dispatch order among
// simultaneously-ready tasks is deterministic regardless of worker timing.
type readyQueue struct {
	ids []string
	pos func(id string) int
}

// newReadyQueue creates a queue using the given position function.
func newReadyQueue(pos func(id string) int) *readyQueue {
	return &readyQueue{pos: pos}
}

// Push inserts an id at its ordered position.
func (q *readyQueue) Push(id string) {
	p := q.pos(id)
	i := sort.Search(len(q.ids), func(i int) bool {
		return q.pos(q.ids[i]) >= p
	})
	q.ids = append(q.ids, "")
	copy(q.ids[i+1:], q.ids[i:])
	q.ids[i] = id
}

// Pop removes and returns the head of the queue.
// Returns false if the queue is empty.
func (q *readyQueue) Pop() (string, bool) {
	if len(q.ids) == 0 {
		return "", false
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, true
}

// Len returns the number of queued ids.
func (q *readyQueue) Len() int {
	return len(q.ids)
}

// Remove deletes an id from the queue if present.
func (q *readyQueue) Remove(id string) bool {
	for i, v := range q.ids {
		if v == id {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			return true
		}
	}
	return false
}

// slotPool tracks worker slots as a fixed-size indexed set with a free-list,
// so acquiring and releasing a slot is O(1) with no scans.
type slotPool struct {
	size int
	free []int
}

// newSlotPool creates a pool of n slots, all free.
func newSlotPool(n int) *slotPool {
	p := &slotPool{size: n, free: make([]int, 0, n)}
	// Pushed in reverse so slot 0 is acquired first.
	for i := n - 1; i >= 0; i-- {
		p.free = append(p.free, i)
	}
	return p
}

// Acquire takes a free slot index. Returns false when all slots are busy.
func (p *slotPool) Acquire() (int, bool) {
	if len(p.free) == 0 {
		return 0, false
	}
	slot := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return slot, true
}

// Release returns a slot to the free-list.
func (p *slotPool) Release(slot int) {
	p.free = append(p.free, slot)
}

// Busy returns the number of slots currently in use.
func (p *slotPool) Busy() int {
	return p.size - len(p.free)
}

// Size returns the total number of slots.
func (p *slotPool) Size() int {
	return p.size
}

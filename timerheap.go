package evloop

import "container/heap"

// timerHeap is an intrusive min-heap over *callback, ordered by
// expiration, with an id→index map so Remove is O(log n) rather than a
// linear scan. Each callback's heapIndex field is kept in sync by the
// heap.Interface methods, mirroring the index-tracking priority queue
// pattern from container/heap's own documentation example.
type timerHeap struct {
	items []*callback
	index map[CallbackID]int
}

func newTimerHeap() *timerHeap {
	return &timerHeap{index: make(map[CallbackID]int)}
}

func (h *timerHeap) Len() int { return len(h.items) }

func (h *timerHeap) Less(i, j int) bool {
	return h.items[i].expiration < h.items[j].expiration
}

func (h *timerHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].heapIndex = i
	h.items[j].heapIndex = j
	h.index[h.items[i].id] = i
	h.index[h.items[j].id] = j
}

func (h *timerHeap) Push(x any) {
	c := x.(*callback)
	c.heapIndex = len(h.items)
	h.index[c.id] = c.heapIndex
	h.items = append(h.items, c)
}

func (h *timerHeap) Pop() any {
	old := h.items
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	delete(h.index, c.id)
	c.heapIndex = -1
	return c
}

// Insert adds c to the heap. Precondition: c.id is not currently present.
func (h *timerHeap) Insert(c *callback) {
	heap.Push(h, c)
}

// Remove deletes the callback with the given id, if present. No-op
// otherwise.
func (h *timerHeap) Remove(id CallbackID) {
	i, ok := h.index[id]
	if !ok {
		return
	}
	heap.Remove(h, i)
}

// Peek returns the root's expiration without removing it.
func (h *timerHeap) Peek() (expiration float64, ok bool) {
	if len(h.items) == 0 {
		return 0, false
	}
	return h.items[0].expiration, true
}

// ExtractDue pops and returns the root if its expiration is <= now,
// otherwise returns nil.
func (h *timerHeap) ExtractDue(now float64) *callback {
	if len(h.items) == 0 || h.items[0].expiration > now {
		return nil
	}
	return heap.Pop(h).(*callback)
}

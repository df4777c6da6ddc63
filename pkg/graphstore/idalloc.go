package graphstore

import "container/heap"

// idHeap is a min-heap of freed ids, used by the node and edge allocators to
// satisfy spec I5 ("freed ids are reused") by always handing out the lowest
// free id rather than appending monotonically. No example repo in the
// retrieval pack implements an id-recycling allocator, so this is built
// directly on container/heap (see DESIGN.md).
type idHeap []uint64

func (h idHeap) Len() int            { return len(h) }
func (h idHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x interface{}) { *h = append(*h, x.(uint64)) }
func (h *idHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// idAllocator hands out the lowest available id, growing a monotonic
// counter only when the free list is empty.
type idAllocator struct {
	next uint64
	free idHeap
}

func newIDAllocator() *idAllocator {
	return &idAllocator{free: idHeap{}}
}

// Alloc returns the lowest free id, growing the allocator's high-water mark
// if none has ever been freed.
func (a *idAllocator) Alloc() uint64 {
	if len(a.free) > 0 {
		return heap.Pop(&a.free).(uint64)
	}
	id := a.next
	a.next++
	return id
}

// Release returns id to the free list for future reuse.
func (a *idAllocator) Release(id uint64) {
	heap.Push(&a.free, id)
}

// Capacity reports one past the highest id ever allocated.
func (a *idAllocator) Capacity() uint64 {
	return a.next
}

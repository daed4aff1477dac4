package graph

// workQueue is a FIFO of resolutions with pending work. A resolution is
// held at most once while queued; it may be queued again after it has been
// dequeued.
type workQueue struct {
	items  []*Resolution
	queued map[*Resolution]bool
}

func newWorkQueue() *workQueue {
	return &workQueue{
		items:  make([]*Resolution, 0, 16),
		queued: make(map[*Resolution]bool),
	}
}

// Enqueue adds r to the back of the queue unless it is already queued.
func (q *workQueue) Enqueue(r *Resolution) {
	if q.queued[r] {
		return
	}
	q.queued[r] = true
	q.items = append(q.items, r)
}

// TryDequeue removes and returns the front resolution.
func (q *workQueue) TryDequeue() (*Resolution, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	r := q.items[0]
	// Release the slot so the backing array does not pin finished work.
	q.items[0] = nil
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	delete(q.queued, r)
	return r, true
}

// Len returns the number of queued resolutions.
func (q *workQueue) Len() int {
	return len(q.items)
}

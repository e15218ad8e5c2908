package market

// Queue is a double-ended priority queue of orders backed by a min-max heap.
// Even levels hold minima of their subtrees, odd levels maxima.
type Queue struct {
	items []Order
	less  func(a, b Order) bool
}

// newAskQueue orders by rate ascending, then arrival, so PopMin yields the
// cheapest, oldest ask.
func newAskQueue() *Queue {
	return &Queue{less: func(a, b Order) bool {
		if a.Rate != b.Rate {
			return a.Rate < b.Rate
		}
		return a.seq < b.seq
	}}
}

// newBidQueue orders by rate ascending, then reverse arrival, so PopMax yields
// the highest, oldest bid.
func newBidQueue() *Queue {
	return &Queue{less: func(a, b Order) bool {
		if a.Rate != b.Rate {
			return a.Rate < b.Rate
		}
		return a.seq > b.seq
	}}
}

// Len returns the number of queued orders.
func (q *Queue) Len() int { return len(q.items) }

// Push adds an order.
func (q *Queue) Push(o Order) {
	q.items = append(q.items, o)
	q.bubbleUp(len(q.items) - 1)
}

// PeekMin returns the smallest order.
func (q *Queue) PeekMin() (Order, bool) {
	if len(q.items) == 0 {
		return Order{}, false
	}
	return q.items[0], true
}

// PeekMax returns the largest order.
func (q *Queue) PeekMax() (Order, bool) {
	if len(q.items) == 0 {
		return Order{}, false
	}
	return q.items[q.maxIndex()], true
}

// PopMin removes and returns the smallest order.
func (q *Queue) PopMin() (Order, bool) {
	if len(q.items) == 0 {
		return Order{}, false
	}
	return q.removeAt(0), true
}

// PopMax removes and returns the largest order.
func (q *Queue) PopMax() (Order, bool) {
	if len(q.items) == 0 {
		return Order{}, false
	}
	return q.removeAt(q.maxIndex()), true
}

// Retain drops every order for which keep returns false and returns how many
// were dropped.
func (q *Queue) Retain(keep func(Order) bool) int {
	old := q.items
	q.items = make([]Order, 0, len(old))
	for _, o := range old {
		if keep(o) {
			q.Push(o)
		}
	}
	return len(old) - len(q.items)
}

func (q *Queue) maxIndex() int {
	switch len(q.items) {
	case 1:
		return 0
	case 2:
		return 1
	}
	if q.less(q.items[1], q.items[2]) {
		return 2
	}
	return 1
}

func (q *Queue) removeAt(i int) Order {
	o := q.items[i]
	last := len(q.items) - 1
	q.items[i] = q.items[last]
	q.items = q.items[:last]
	if i < len(q.items) {
		q.trickleDown(i)
	}
	return o
}

func (q *Queue) swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func minLevel(i int) bool {
	level := 0
	for i > 0 {
		i = (i - 1) / 2
		level++
	}
	return level%2 == 0
}

func (q *Queue) bubbleUp(i int) {
	if i == 0 {
		return
	}
	p := (i - 1) / 2
	if minLevel(i) {
		if q.less(q.items[p], q.items[i]) {
			q.swap(i, p)
			q.bubbleUpBy(p, q.greater)
		} else {
			q.bubbleUpBy(i, q.less)
		}
		return
	}
	if q.less(q.items[i], q.items[p]) {
		q.swap(i, p)
		q.bubbleUpBy(p, q.less)
	} else {
		q.bubbleUpBy(i, q.greater)
	}
}

func (q *Queue) greater(a, b Order) bool { return q.less(b, a) }

// bubbleUpBy moves i up through its grandparents while before(i, grandparent).
func (q *Queue) bubbleUpBy(i int, before func(a, b Order) bool) {
	for i > 2 {
		gp := ((i-1)/2 - 1) / 2
		if !before(q.items[i], q.items[gp]) {
			return
		}
		q.swap(i, gp)
		i = gp
	}
}

func (q *Queue) trickleDown(i int) {
	if minLevel(i) {
		q.trickleDownBy(i, q.less)
	} else {
		q.trickleDownBy(i, q.greater)
	}
}

// trickleDownBy restores the heap below i, where before picks the order that
// belongs closer to the root on i's level.
func (q *Queue) trickleDownBy(i int, before func(a, b Order) bool) {
	n := len(q.items)
	for {
		m := -1
		for _, c := range [6]int{2*i + 1, 2*i + 2, 4*i + 3, 4*i + 4, 4*i + 5, 4*i + 6} {
			if c < n && (m < 0 || before(q.items[c], q.items[m])) {
				m = c
			}
		}
		if m < 0 || !before(q.items[m], q.items[i]) {
			return
		}
		q.swap(m, i)
		if m <= 2*i+2 {
			return
		}
		// m is a grandchild; its parent sits on the opposite level
		if p := (m - 1) / 2; before(q.items[p], q.items[m]) {
			q.swap(m, p)
		}
		i = m
	}
}

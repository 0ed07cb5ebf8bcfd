// Package ring implements the doubly-linked circular list used to
// classify pools (current/young/old/free). It is an intrusive ring in
// the style of runtime/lfstack.go's intrusive lfnode links, rather than
// container/ring's interface{}-valued Ring: the nodes here (pools) are
// already structs with their own identity, so there is no need for a
// separate wrapper node per element.
package ring

import "github.com/boxroot-go/boxroot/internal/stats"

// Elem is implemented by anything that can be a ring node. Pools
// implement it directly over their own prev/next fields.
type Elem interface {
	RingNext() Elem
	RingPrev() Elem
	SetRingNext(Elem)
	SetRingPrev(Elem)
}

// Ring holds a reference to the first element of a ring, or nil for an
// empty ring. The zero value is an empty ring.
type Ring struct {
	Head Elem
}

func link(p, q Elem) {
	p.SetRingNext(q)
	q.SetRingPrev(p)
	stats.IncRingOperations()
}

// Empty reports whether the ring has no elements.
func (r *Ring) Empty() bool { return r.Head == nil }

// PushBack splices the ring rooted at src onto the back of r. src must be
// a self-contained ring (its own prev/next point to itself if it is a
// single element); r and src must not be the same ring.
func (r *Ring) PushBack(src Elem) {
	if src == nil {
		return
	}
	if r.Head == nil {
		r.Head = src
		return
	}
	targetLast := r.Head.RingPrev()
	srcLast := src.RingPrev()
	link(targetLast, src)
	link(srcLast, r.Head)
}

// Pop detaches and returns the head element of r, re-linked to itself as
// a singleton ring. Pop on an empty ring returns nil.
func (r *Ring) Pop() Elem {
	front := r.Head
	if front == nil {
		return nil
	}
	if front.RingNext() == front {
		r.Head = nil
	} else {
		r.Head = front.RingNext()
		link(front.RingPrev(), front.RingNext())
	}
	link(front, front)
	return front
}

// SetHead rotates the ring so that e (already a member of r) becomes the
// new head, without any relinking. Used when a just-reclassified pool
// should be considered first on the next allocation.
func (r *Ring) SetHead(e Elem) { r.Head = e }

// Each calls f once per element of r, in forward order, starting at the
// head. f must not mutate the ring.
func (r *Ring) Each(f func(Elem)) {
	if r.Head == nil {
		return
	}
	p := r.Head
	for {
		f(p)
		p = p.RingNext()
		if p == r.Head {
			return
		}
	}
}

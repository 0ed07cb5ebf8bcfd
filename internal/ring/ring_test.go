package ring

import "testing"

type node struct {
	id         int
	prev, next Elem
}

func (n *node) RingNext() Elem     { return n.next }
func (n *node) RingPrev() Elem     { return n.prev }
func (n *node) SetRingNext(e Elem) { n.next = e }
func (n *node) SetRingPrev(e Elem) { n.prev = e }

func ids(r *Ring) []int {
	var out []int
	r.Each(func(e Elem) { out = append(out, e.(*node).id) })
	return out
}

func TestEmptyRing(t *testing.T) {
	var r Ring
	if !r.Empty() {
		t.Fatal("expected empty")
	}
	if r.Pop() != nil {
		t.Fatal("pop of empty ring should be nil")
	}
}

func TestPushBackSingle(t *testing.T) {
	var r Ring
	n := &node{id: 1, prev: nil, next: nil}
	n.prev, n.next = n, n
	r.PushBack(n)
	if got := ids(&r); len(got) != 1 || got[0] != 1 {
		t.Fatalf("got %v", got)
	}
}

func TestPushBackOrder(t *testing.T) {
	var r Ring
	for i := 1; i <= 3; i++ {
		n := &node{id: i}
		n.prev, n.next = n, n
		r.PushBack(n)
	}
	got := ids(&r)
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestPopAdvancesHead(t *testing.T) {
	var r Ring
	for i := 1; i <= 3; i++ {
		n := &node{id: i}
		n.prev, n.next = n, n
		r.PushBack(n)
	}
	popped := r.Pop().(*node)
	if popped.id != 1 {
		t.Fatalf("popped %d, want 1", popped.id)
	}
	if popped.RingNext() != popped || popped.RingPrev() != popped {
		t.Fatal("detached node must be linked to itself")
	}
	if got := ids(&r); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("got %v", got)
	}
}

func TestPopLastEmptiesRing(t *testing.T) {
	var r Ring
	n := &node{id: 1}
	n.prev, n.next = n, n
	r.PushBack(n)
	r.Pop()
	if !r.Empty() {
		t.Fatal("ring should be empty after popping its only element")
	}
}

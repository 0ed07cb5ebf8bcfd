package gchost

import "testing"

func TestScanRootsChainsToPrevious(t *testing.T) {
	var order []string
	prev := Install(Hooks{}, func(onlyYoung bool, dom int) {
		order = append(order, "prev")
	}, func(dom int) {})

	h := Install(*prev, func(onlyYoung bool, dom int) {
		order = append(order, "self")
	}, func(dom int) {})

	h.ScanRootsHook(true, 0)
	if len(order) != 2 || order[0] != "prev" || order[1] != "self" {
		t.Fatalf("chain order = %v, want [prev self]", order)
	}
}

func TestMinorCollectionCounter(t *testing.T) {
	h := Install(Hooks{}, func(bool, int) {}, func(int) {})
	if h.InMinorCollection() {
		t.Fatal("should not report a minor collection before one begins")
	}
	h.MinorBeginHook()
	if !h.InMinorCollection() {
		t.Fatal("should report a minor collection in flight")
	}
	h.MinorEndHook()
	if h.InMinorCollection() {
		t.Fatal("should not report a minor collection after it ends")
	}
}

func TestDomainTerminatedChains(t *testing.T) {
	var seen []int
	prev := Install(Hooks{}, func(bool, int) {}, func(dom int) {
		seen = append(seen, dom*10)
	})
	h := Install(*prev, func(bool, int) {}, func(dom int) {
		seen = append(seen, dom)
	})
	h.DomainTerminatedHook(4)
	if len(seen) != 2 || seen[0] != 40 || seen[1] != 4 {
		t.Fatalf("seen = %v, want [40 4]", seen)
	}
}

// Package hostfake is an in-memory stand-in for a real host GC: enough
// of young/old heap bookkeeping, domain-lock tracking, and a remembered
// set to drive boxroot's test suite without a real moving collector.
// Nothing here ships to production; it exists purely to exercise
// boxroot.Host's contract the way original_source/boxroot/ocaml_hooks.c
// exercises the real OCaml runtime's hooks.
package hostfake

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// immediate tagging follows the OCaml convention described in the
// original source's Is_block: the low bit set means "not a pointer".
const immediateTag = 1

// block region bounds; addresses handed out by AllocYoung/AllocOld are
// synthetic (never dereferenced), just distinct uintptr values that fall
// in the matching range.
const (
	youngBase   = 0x1_0000_0000
	youngLength = 0x1000_0000
	oldBase     = 0x2_0000_0000
)

// Host is a goroutine-aware fake: each goroutine can be bound to a
// domain id via BindDomain, mimicking the per-thread cached domain id
// spec.md's design notes call out. Binding is looked up by goroutine id
// extracted from the runtime stack trace — acceptable for a test double,
// never done in the production path.
type Host struct {
	mu sync.Mutex

	bindings map[uint64]int
	locked   map[int]bool

	nextYoung uintptr
	nextOld   uintptr

	remembered []*uintptr

	ScanLog []ScanEvent
}

// ScanEvent records one ScanAction invocation, for assertions in tests.
type ScanEvent struct {
	Value uintptr
	Cell  *uintptr
}

func New() *Host {
	return &Host{
		bindings:  map[uint64]int{},
		locked:    map[int]bool{},
		nextYoung: youngBase,
		nextOld:   oldBase,
	}
}

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// "goroutine 123 [running]:" is always the first line.
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	end := bytes.IndexByte(b, ' ')
	id, _ := strconv.ParseUint(string(b[:end]), 10, 64)
	return id
}

// BindDomain associates the calling goroutine with dom and marks dom's
// lock held; callers should defer the returned func to unbind.
func (h *Host) BindDomain(dom int) func() {
	gid := goroutineID()
	h.mu.Lock()
	h.bindings[gid] = dom
	h.locked[dom] = true
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.bindings, gid)
		h.mu.Unlock()
	}
}

// Unlock marks dom's domain lock released without unbinding the
// goroutine, for tests that need to simulate a "remote" delete from the
// same goroutine that created the handle.
func (h *Host) Unlock(dom int) {
	h.mu.Lock()
	h.locked[dom] = false
	h.mu.Unlock()
}

func (h *Host) CurrentDomainID() int {
	gid := goroutineID()
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bindings[gid]
}

func (h *Host) DomainLockHeld(id int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.locked[id]
}

func (h *Host) IsBlock(v uintptr) bool {
	return v != 0 && v&immediateTag == 0
}

func (h *Host) IsYoung(v uintptr) bool {
	return v-youngBase < youngLength
}

func (h *Host) YoungRange() (start, length uintptr) {
	return youngBase, youngLength
}

func (h *Host) EnrollRemembered(cell *uintptr) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remembered = append(h.remembered, cell)
	return true
}

func (h *Host) RememberedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.remembered)
}

func (h *Host) ScanAction(v uintptr, cell *uintptr) {
	h.mu.Lock()
	h.ScanLog = append(h.ScanLog, ScanEvent{Value: v, Cell: cell})
	h.mu.Unlock()
}

// Immediate returns an immediate value encoding n, never treated as a
// block.
func Immediate(n int) uintptr { return uintptr(n<<1) | immediateTag }

// AllocYoung returns a fresh synthetic address in the young range.
func (h *Host) AllocYoung() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	v := h.nextYoung
	h.nextYoung += 2
	return v
}

// AllocOld returns a fresh synthetic address outside the young range.
func (h *Host) AllocOld() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	v := h.nextOld
	h.nextOld += 2
	return v
}

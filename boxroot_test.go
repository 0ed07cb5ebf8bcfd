package boxroot_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/boxroot-go/boxroot"
	"github.com/boxroot-go/boxroot/internal/hostfake"
	"github.com/boxroot-go/boxroot/internal/slotpool"
	"github.com/boxroot-go/boxroot/internal/stats"
)

func newRegistry(t *testing.T) (*boxroot.Registry, *hostfake.Host) {
	t.Helper()
	h := hostfake.New()
	r := boxroot.New(h, nil)
	require.NoError(t, r.Setup())
	t.Cleanup(r.Teardown)
	return r, h
}

// round-trip: get(create(v)) == v.
func TestRoundTrip(t *testing.T) {
	r, h := newRegistry(t)
	unbind := h.BindDomain(0)
	defer unbind()

	v := hostfake.Immediate(42)
	handle, err := r.Create(v)
	require.NoError(t, err)
	require.Equal(t, v, r.Get(handle))
}

func TestCreateWithoutDomainLockFails(t *testing.T) {
	r, _ := newRegistry(t)
	_, err := r.Create(hostfake.Immediate(1))
	require.ErrorIs(t, err, boxroot.ErrNoDomainLock)
}

// Scenario A: fill-and-free a single pool.
func TestScenarioAFillAndFree(t *testing.T) {
	stats.Reset()
	r, h := newRegistry(t)
	unbind := h.BindDomain(0)
	defer unbind()

	handles := make([]boxroot.Handle, 0, slotpool.PoolCapacity)
	for i := 0; i < slotpool.PoolCapacity; i++ {
		handle, err := r.Create(hostfake.Immediate(i))
		require.NoError(t, err)
		handles = append(handles, handle)
	}
	require.Equal(t, int64(1), stats.Snapshot().TotalAllocedPools)

	for _, handle := range handles {
		r.Delete(handle)
	}

	r.ScanRoots(false, 0) // major collection frees the Free ring
	require.Equal(t, int64(0), stats.Snapshot().LivePools)
}

// Scenario B: minor promotion.
func TestScenarioBMinorPromotion(t *testing.T) {
	r, h := newRegistry(t)
	unbind := h.BindDomain(1)
	defer unbind()

	const n = 1000
	for i := 0; i < n; i++ {
		_, err := r.Create(h.AllocYoung())
		require.NoError(t, err)
	}

	r.ScanRoots(true, 1)

	h.ScanLog = nil
	r.ScanRoots(true, 1)
	require.Empty(t, h.ScanLog, "pools promoted to old must not be visited by a young-only scan")
}

// Scenario D: modify across generations.
func TestScenarioDModifyAcrossGenerations(t *testing.T) {
	r, h := newRegistry(t)
	unbind := h.BindDomain(2)
	defer unbind()

	oldVal := h.AllocOld()
	handle, err := r.Create(oldVal)
	require.NoError(t, err)

	// A young-only scan demotes the current pool to Young then promotes
	// the whole young ring to Old, leaving handle's pool Old-classed
	// without ever reselecting it as current.
	r.ScanRoots(true, 2)
	p := slotpool.FromSlot(handle.RawAddr())
	require.Equal(t, slotpool.Old, p.Class())

	young := h.AllocYoung()
	ok, err := r.Modify(&handle, young)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, young, r.Get(handle))

	newPool := slotpool.FromSlot(handle.RawAddr())
	require.Equal(t, slotpool.Young, newPool.Class())
}

// Scenario F: threshold demotion. Fills one pool to capacity, forces it
// out of Current by requesting one more slot (which createSlow services
// from a second, fresh pool), then deletes every slot of the first pool.
// The last delete crosses the zero-alloc-count threshold and reclassifies
// it out of Young into Free — exactly once.
func TestScenarioFThresholdDemotion(t *testing.T) {
	stats.Reset()
	r, h := newRegistry(t)
	unbind := h.BindDomain(3)
	defer unbind()

	handles := make([]boxroot.Handle, 0, slotpool.PoolCapacity)
	for i := 0; i < slotpool.PoolCapacity; i++ {
		handle, err := r.Create(hostfake.Immediate(i))
		require.NoError(t, err)
		handles = append(handles, handle)
	}
	firstPool := slotpool.FromSlot(handles[0].RawAddr())

	// Forces createSlow: firstPool is full, demoted to Young, a fresh
	// pool becomes Current.
	_, err := r.Create(hostfake.Immediate(999))
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Snapshot().TotalAllocedPools)

	for _, handle := range handles {
		r.Delete(handle)
	}

	require.Equal(t, int32(0), firstPool.AllocCount())
	require.Equal(t, int64(1), stats.Snapshot().TotalEmptiedPools,
		"exactly one pool should cross the threshold and reclassify out of Young")
}

// Scenario C: remote delete across domains.
func TestScenarioCRemoteDelete(t *testing.T) {
	stats.Reset()
	r, h := newRegistry(t)

	const n = slotpool.PoolCapacity / 4
	handles := make([]boxroot.Handle, n)

	var g errgroup.Group
	g.Go(func() error {
		unbind := h.BindDomain(10)
		defer unbind()
		for i := 0; i < n; i++ {
			handle, err := r.Create(hostfake.Immediate(i))
			if err != nil {
				return err
			}
			handles[i] = handle
		}
		return nil
	})
	require.NoError(t, g.Wait())

	var g2 errgroup.Group
	g2.Go(func() error {
		unbind := h.BindDomain(11)
		defer unbind()
		for _, handle := range handles {
			r.Delete(handle)
		}
		return nil
	})
	require.NoError(t, g2.Wait())

	r.ScanRoots(false, 10)
	require.Equal(t, int64(0), stats.Snapshot().LivePools)
}

// Scenario E: domain termination and adoption.
func TestScenarioEDomainTermination(t *testing.T) {
	r, h := newRegistry(t)

	const n = 500
	handles := make([]boxroot.Handle, n)
	func() {
		unbind := h.BindDomain(20)
		defer unbind()
		for i := 0; i < n; i++ {
			handle, err := r.Create(hostfake.Immediate(i))
			require.NoError(t, err)
			handles[i] = handle
		}
	}()

	r.DomainTerminated(20)

	unbind := h.BindDomain(21)
	defer unbind()
	r.ScanRoots(false, 21)

	for i, handle := range handles {
		require.Equal(t, hostfake.Immediate(i), r.Get(handle))
	}
}

func TestTeardownIsIdempotent(t *testing.T) {
	h := hostfake.New()
	r := boxroot.New(h, nil)
	require.NoError(t, r.Setup())
	r.Teardown()
	r.Teardown()
	require.Equal(t, boxroot.StatusTornDown, r.Status())
}

package balloon

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/vmdash/vmdash/internal/domain"
)

type fakeSetter struct {
	calls []call
	err   error
}

type call struct {
	name      string
	newActual uint64
}

func (f *fakeSetter) SetMemory(_ context.Context, name string, newActual uint64) error {
	f.calls = append(f.calls, call{name, newActual})
	return f.err
}

func guestVM(name string, actual uint64, maxMemory uint64, usablePct int, lastUpdatedSec int64) domain.VMCache {
	usable := uint64(1000)
	available := usable - usable*uint64(usablePct)/100
	return domain.VMCache{
		Data: domain.DomainData{
			Info:       domain.DomainInfo{Name: name, MaxMemory: maxMemory},
			State:      domain.StateRunning,
			HasMemStat: true,
			MemStat: domain.MemStat{
				Actual:         actual,
				LastUpdatedSec: lastUpdatedSec,
				HasGuestData:   true,
				GuestMem:       domain.GuestMemStat{Usable: usable, Available: available},
			},
		},
	}
}

func snapWith(name string, vc domain.VMCache) domain.Snapshot {
	return domain.Snapshot{PerVM: map[string]domain.VMCache{name: vc}}
}

// Scenario 1: inflate on pressure.
func TestUpdate_InflateOnPressure(t *testing.T) {
	setter := &fakeSetter{}
	c := New(setter, Defaults(), nil)

	vc := guestVM("win11", 2<<30, 16<<30, 100, 1)
	c.Update(context.Background(), snapWith("win11", vc))

	if len(setter.calls) != 1 {
		t.Fatalf("expected exactly one set_memory call, got %d", len(setter.calls))
	}
	if setter.calls[0].newActual != 2791728742 {
		t.Fatalf("expected 2791728742, got %d", setter.calls[0].newActual)
	}
	status, _ := c.Status("win11")
	if status != "updating actual by 30% to 2.6G" {
		t.Fatalf("unexpected status: %q", status)
	}
}

// Scenario 2: cap at max.
func TestUpdate_CapAtMax(t *testing.T) {
	setter := &fakeSetter{}
	c := New(setter, Defaults(), nil)

	vc := guestVM("win11", 15<<30, 16<<30, 95, 1)
	c.Update(context.Background(), snapWith("win11", vc))

	if len(setter.calls) != 1 || setter.calls[0].newActual != 16<<30 {
		t.Fatalf("expected set_memory(16GiB), got %+v", setter.calls)
	}
}

// Scenario 3: back-off suppresses deflate, then releases after it expires.
func TestUpdate_BackOffSuppressesDeflate(t *testing.T) {
	setter := &fakeSetter{}
	params := Defaults()
	c := New(setter, params, nil)

	// First tick: deflate.
	vc1 := guestVM("ubuntu", 4<<30, 16<<30, 50, 1)
	c.Update(context.Background(), snapWith("ubuntu", vc1))
	if len(setter.calls) != 1 {
		t.Fatalf("expected one deflate call, got %d", len(setter.calls))
	}
	wantFirst := uint64(4 << 30 * 90 / 100)
	if setter.calls[0].newActual != wantFirst {
		t.Fatalf("expected %d, got %d", wantFirst, setter.calls[0].newActual)
	}

	c.mu.Lock()
	sub := c.subs["ubuntu"]
	c.mu.Unlock()

	// Second tick, new data, still within back-off: no call, status reports backing off.
	vc2 := guestVM("ubuntu", wantFirst, 16<<30, 50, 2)
	sub.tick(context.Background(), "ubuntu", vc2, setter, time.Now().Add(5*time.Second), nil)
	if len(setter.calls) != 1 {
		t.Fatalf("expected still one call during back-off, got %d", len(setter.calls))
	}
	if !strings.HasPrefix(sub.Status(), "backing off for ") {
		t.Fatalf("expected a backing-off status, got %q", sub.Status())
	}

	// Third tick, after back-off has elapsed: deflate proceeds again.
	vc3 := guestVM("ubuntu", wantFirst, 16<<30, 50, 3)
	sub.tick(context.Background(), "ubuntu", vc3, setter, time.Now().Add(11*time.Second), nil)
	if len(setter.calls) != 2 {
		t.Fatalf("expected a second deflate call after back-off elapsed, got %d", len(setter.calls))
	}
	wantSecond := wantFirst * 90 / 100
	if setter.calls[1].newActual != wantSecond {
		t.Fatalf("expected %d, got %d", wantSecond, setter.calls[1].newActual)
	}
}

// Disabled VMs never change actual.
func TestUpdate_DisabledNeverChangesActual(t *testing.T) {
	setter := &fakeSetter{}
	c := New(setter, Defaults(), nil)
	c.SetEnabled("win11", false)

	vc := guestVM("win11", 2<<30, 16<<30, 100, 1)
	c.Update(context.Background(), snapWith("win11", vc))

	if len(setter.calls) != 0 {
		t.Fatalf("expected no set_memory calls while disabled, got %d", len(setter.calls))
	}
	status, _ := c.Status("win11")
	if status != "disabled" {
		t.Fatalf("expected status 'disabled', got %q", status)
	}
}

// Property: after one inflate, actual strictly increases unless clamped at max_memory.
func TestClampActual_InflateStrictlyIncreasesUnlessAtMax(t *testing.T) {
	newActual, _, _ := clampActual(2<<30, 30, 2<<30, 16<<30)
	if newActual <= 2<<30 {
		t.Fatalf("expected strict increase, got %d", newActual)
	}
	if newActual < 2<<30 {
		t.Fatal("expected result to respect min_actual")
	}

	atMax, capped, unchanged := clampActual(16<<30, 30, 2<<30, 16<<30)
	if atMax != 16<<30 || !capped || !unchanged {
		t.Fatalf("expected clamp to stay at max_memory, got %d capped=%v unchanged=%v", atMax, capped, unchanged)
	}
}

// Stale data: no new reading since the last tick produces "no new data" and
// makes no set_memory call.
func TestUpdate_NoNewDataMakesNoCall(t *testing.T) {
	setter := &fakeSetter{}
	c := New(setter, Defaults(), nil)

	vc := guestVM("win11", 2<<30, 16<<30, 100, 42)
	c.Update(context.Background(), snapWith("win11", vc))
	if len(setter.calls) != 1 {
		t.Fatalf("expected first tick to act, got %d calls", len(setter.calls))
	}

	// Same last_updated_sec as before: must not act again even though
	// pressure is still high.
	c.Update(context.Background(), snapWith("win11", vc))
	if len(setter.calls) != 1 {
		t.Fatalf("expected no additional call for a stale reading, got %d calls", len(setter.calls))
	}
	status, _ := c.Status("win11")
	if status != "no new data" {
		t.Fatalf("expected 'no new data' status, got %q", status)
	}
}

// Pruning: a VM that disappears from the snapshot loses its sub-controller.
func TestUpdate_PrunesDisappearedVMs(t *testing.T) {
	setter := &fakeSetter{}
	c := New(setter, Defaults(), nil)

	vc := guestVM("win11", 2<<30, 16<<30, 100, 1)
	c.Update(context.Background(), snapWith("win11", vc))
	if _, ok := c.Status("win11"); !ok {
		t.Fatal("expected a sub-controller for win11")
	}

	c.Update(context.Background(), domain.Snapshot{PerVM: map[string]domain.VMCache{}})
	if _, ok := c.Status("win11"); ok {
		t.Fatal("expected win11's sub-controller to be pruned")
	}
}

// set_memory failures are logged and do not update bookkeeping: the next
// tick with the same reading is retried, not skipped as "no new data".
func TestUpdate_SetMemoryFailureDoesNotUpdateBookkeeping(t *testing.T) {
	setter := &fakeSetter{err: context.DeadlineExceeded}
	c := New(setter, Defaults(), nil)

	vc := guestVM("win11", 2<<30, 16<<30, 100, 7)
	c.Update(context.Background(), snapWith("win11", vc))

	c.mu.Lock()
	sub := c.subs["win11"]
	c.mu.Unlock()
	if sub.hasLastUpdate {
		t.Fatal("bookkeeping must not update on set_memory failure")
	}
}

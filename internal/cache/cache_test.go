package cache

import (
	"context"
	"testing"

	"github.com/vmdash/vmdash/internal/domain"
	"github.com/vmdash/vmdash/internal/sysinfo"
)

type fakeAdapter struct {
	data      map[string]*domain.DomainData
	err       error
	setMemCalled bool
	setMemBytes  uint64
}

func (f *fakeAdapter) DomainData(context.Context) (map[string]*domain.DomainData, error) {
	return f.data, f.err
}

func (f *fakeAdapter) SetMemory(_ context.Context, _ string, bytes uint64) error {
	f.setMemCalled = true
	f.setMemBytes = bytes
	return nil
}

type fakeSystem struct {
	ram, swap domain.MemoryStat
	cpu       domain.CPUSample
	pct       float64
}

func (f *fakeSystem) MemoryStats() (domain.MemoryStat, domain.MemoryStat, error) {
	return f.ram, f.swap, nil
}

func (f *fakeSystem) CPUUsage(domain.CPUSample, bool) (domain.CPUSample, float64, error) {
	return f.cpu, f.pct, nil
}

func (f *fakeSystem) DiskUsage([]sysinfo.Qcow2Source) (map[string]domain.DiskUsage, error) {
	return map[string]domain.DiskUsage{}, nil
}

func vm(name string, running bool, rss uint64, sampledAtMS, cpuTimeMS int64) *domain.DomainData {
	d := &domain.DomainData{
		Info:        domain.DomainInfo{Name: name, MaxMemory: 16 << 30},
		SampledAtMS: sampledAtMS,
		CPUTimeMS:   cpuTimeMS,
	}
	if running {
		d.State = domain.StateRunning
		d.HasMemStat = true
		d.MemStat = domain.MemStat{RSS: rss, Actual: 2 << 30}
	} else {
		d.State = domain.StateShutOff
	}
	return d
}

func TestUpdate_AggregatesRSSAndCPUPercent(t *testing.T) {
	adapter := &fakeAdapter{data: map[string]*domain.DomainData{
		"a": vm("a", true, 1000, 1000, 1000),
		"b": vm("b", true, 2000, 1000, 2000),
	}}
	sys := &fakeSystem{}
	c := New(adapter, sys, 4)

	if err := c.Update(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := c.Snapshot()
	if snap.TotalVMRSS != 3000 {
		t.Fatalf("expected total rss 3000, got %d", snap.TotalVMRSS)
	}

	// Second tick: advance time and cpu so we get a non-zero cpu percent.
	adapter.data = map[string]*domain.DomainData{
		"a": vm("a", true, 1000, 2000, 1500), // +500ms cpu over +1000ms wall = 50%
		"b": vm("b", true, 2000, 2000, 2500), // +500ms cpu over +1000ms wall = 50%
	}
	if err := c.Update(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap = c.Snapshot()

	var wantSum float64
	for _, vc := range snap.PerVM {
		wantSum += vc.CPUUsagePercent
	}
	if snap.TotalVMCPUPercent != wantSum/4 {
		t.Fatalf("invariant violated: total_vm_cpu_percent = %v, want %v", snap.TotalVMCPUPercent, wantSum/4)
	}

	var wantRSS uint64
	for _, vc := range snap.PerVM {
		if vc.Data.Running() {
			wantRSS += vc.Data.MemStat.RSS
		}
	}
	if snap.TotalVMRSS != wantRSS {
		t.Fatalf("invariant violated: total_vm_rss = %d, want %d", snap.TotalVMRSS, wantRSS)
	}
}

func TestDiff_StaleDataScenario4(t *testing.T) {
	prev := vm("a", true, 100, 1000, 100)
	prev.MemStat.HasGuestData = true
	prev.MemStat.LastUpdatedSec = 1_700_000_000

	next := vm("a", true, 100, 8000, 100)
	next.MemStat.HasGuestData = true
	next.MemStat.LastUpdatedSec = 1_700_000_007 // +7s, same reading age threshold

	vc := diff(prev, next)
	if !vc.HasMemDataAge || vc.MemDataAgeSec != 7 {
		t.Fatalf("expected age 7, got has=%v age=%d", vc.HasMemDataAge, vc.MemDataAgeSec)
	}
	if !vc.Stale() {
		t.Fatal("expected stale() to be true at the threshold")
	}
}

func TestDiff_FreshMemDataAgeZeroIsNotStale(t *testing.T) {
	next := vm("a", true, 100, 1000, 100)
	next.MemStat.HasGuestData = true
	next.MemStat.LastUpdatedSec = 123

	vc := diff(nil, next)
	if !vc.HasMemDataAge || vc.MemDataAgeSec != 0 {
		t.Fatalf("expected age 0 with no prior balloon data, got %+v", vc)
	}
	if vc.Stale() {
		t.Fatal("age 0 must never be classified as stale")
	}
}

func TestDiff_NoBalloonDataHasNoAge(t *testing.T) {
	next := vm("a", true, 100, 1000, 100) // no guest data
	vc := diff(nil, next)
	if vc.HasMemDataAge {
		t.Fatal("expected no mem data age for a VM without balloon support")
	}
}

func TestSetMemory_ValidatesBounds(t *testing.T) {
	adapter := &fakeAdapter{data: map[string]*domain.DomainData{
		"a": vm("a", true, 0, 0, 0),
	}}
	c := New(adapter, &fakeSystem{}, 1)
	if err := c.Update(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.SetMemory(context.Background(), "a", 1); err == nil {
		t.Fatal("expected ValidationError for too-small target")
	}
	if err := c.SetMemory(context.Background(), "a", 100<<30); err == nil {
		t.Fatal("expected ValidationError for target above max_memory")
	}
	if err := c.SetMemory(context.Background(), "a", 1<<30); err != nil {
		t.Fatalf("unexpected error for valid target: %v", err)
	}
	if !adapter.setMemCalled || adapter.setMemBytes != 1<<30 {
		t.Fatalf("expected adapter.SetMemory to be called with 1GiB, got called=%v bytes=%d", adapter.setMemCalled, adapter.setMemBytes)
	}
}

func TestSetMemory_UnknownVMFails(t *testing.T) {
	c := New(&fakeAdapter{data: map[string]*domain.DomainData{}}, &fakeSystem{}, 1)
	if err := c.SetMemory(context.Background(), "ghost", 1<<30); err == nil {
		t.Fatal("expected ValidationError for unknown VM")
	}
}

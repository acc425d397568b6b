// Package cache implements the SamplingCache of spec.md §4.3: it merges the
// hypervisor's and host's latest samples with the previous snapshot into a
// fresh immutable Snapshot on every tick, computing per-VM deltas along the
// way.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/vmdash/vmdash/internal/domain"
	"github.com/vmdash/vmdash/internal/hypervisor"
	"github.com/vmdash/vmdash/internal/sysinfo"
)

// HypervisorSource is the subset of hypervisor.Adapter the cache depends on.
type HypervisorSource interface {
	DomainData(ctx context.Context) (map[string]*domain.DomainData, error)
	SetMemory(ctx context.Context, name string, bytes uint64) error
}

// SystemSource is the subset of sysinfo.Provider the cache depends on.
type SystemSource interface {
	MemoryStats() (ram, swap domain.MemoryStat, err error)
	CPUUsage(prev domain.CPUSample, hasPrev bool) (current domain.CPUSample, percent float64, err error)
	DiskUsage(sources []sysinfo.Qcow2Source) (map[string]domain.DiskUsage, error)
}

// Cache is the SamplingCache.
type Cache struct {
	adapter      HypervisorSource
	sysProv      SystemSource
	hostCPUCount int

	mu       sync.RWMutex
	snapshot domain.Snapshot
	hasPrev  bool
}

// New creates a Cache. hostCPUCount is used to normalize
// TotalVMCPUPercent, per §4.3.
func New(adapter HypervisorSource, sysProv SystemSource, hostCPUCount int) *Cache {
	if hostCPUCount < 1 {
		hostCPUCount = 1
	}
	return &Cache{adapter: adapter, sysProv: sysProv, hostCPUCount: hostCPUCount}
}

// Snapshot returns the most recently computed snapshot. Safe to call from
// any goroutine; the returned value is immutable.
func (c *Cache) Snapshot() domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Update performs one SamplingCache tick: fetch current VM/host samples,
// diff against the previous snapshot, and atomically replace it.
func (c *Cache) Update(ctx context.Context) error {
	prev := c.Snapshot()

	current, err := c.adapter.DomainData(ctx)
	if err != nil {
		return err
	}

	ram, swap, err := c.sysProv.MemoryStats()
	if err != nil {
		return err
	}

	var prevCPU domain.CPUSample
	if c.hasPrevCPU() {
		prevCPU = prev.Host.CPU
	}
	cpuSample, hostPct, err := c.sysProv.CPUUsage(prevCPU, c.hasPrevCPU())
	if err != nil {
		return err
	}

	perVM := make(map[string]domain.VMCache, len(current))
	var totalRSS uint64
	var totalCPUPercentSum float64
	var qcow2 []sysinfo.Qcow2Source

	for name, next := range current {
		prevVM, hadPrev := prev.VM(name)
		var prevData *domain.DomainData
		if hadPrev {
			d := prevVM.Data
			prevData = &d
		}
		vc := diff(prevData, next)
		perVM[name] = vc

		if next.Running() {
			totalRSS += next.MemStat.RSS
			totalCPUPercentSum += vc.CPUUsagePercent
		}

		for _, disk := range next.Disks {
			if disk.HasPath {
				qcow2 = append(qcow2, sysinfo.Qcow2Source{Path: disk.Path, Physical: disk.Physical})
			}
		}
	}

	diskUsage, err := c.sysProv.DiskUsage(qcow2)
	if err != nil {
		return err
	}

	next := domain.Snapshot{
		PerVM:             perVM,
		Host:              domain.HostSample{Mem: ram, Swap: swap, CPU: cpuSample, Disks: diskUsage},
		HostCPUPercent:    hostPct,
		TotalVMRSS:        totalRSS,
		TotalVMCPUPercent: totalCPUPercentSum / float64(c.hostCPUCount),
		TakenAt:           time.Now(),
	}

	c.mu.Lock()
	c.snapshot = next
	c.hasPrev = true
	c.mu.Unlock()
	return nil
}

func (c *Cache) hasPrevCPU() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasPrev
}

// diff computes one VM's derived cache record from its previous sample (nil
// if there was none) and its current sample, per §4.3.
func diff(prev *domain.DomainData, next *domain.DomainData) domain.VMCache {
	vc := domain.VMCache{Data: *next}

	if prev != nil {
		deltaMS := next.SampledAtMS - prev.SampledAtMS
		if deltaMS > 0 {
			deltaCPU := next.CPUTimeMS - prev.CPUTimeMS
			vc.CPUUsagePercent = float64(deltaCPU) * 100 / float64(deltaMS)
		}
	}

	switch {
	case !next.HasMemStat || !next.MemStat.HasGuestData || !next.Running():
		vc.HasMemDataAge = false
	case prev == nil || !prev.HasMemStat || !prev.MemStat.HasGuestData:
		vc.HasMemDataAge = true
		vc.MemDataAgeSec = 0
	default:
		vc.HasMemDataAge = true
		vc.MemDataAgeSec = next.MemStat.LastUpdatedSec - prev.MemStat.LastUpdatedSec
	}

	return vc
}

// Lookups -------------------------------------------------------------

// VM returns a VM's cache record by name.
func (c *Cache) VM(name string) (domain.VMCache, bool) {
	return c.Snapshot().VM(name)
}

// Info returns a VM's static DomainInfo by name.
func (c *Cache) Info(name string) (domain.DomainInfo, bool) {
	vc, ok := c.VM(name)
	if !ok {
		return domain.DomainInfo{}, false
	}
	return vc.Data.Info, true
}

// MemStat returns a VM's MemStat by name, if the VM is running.
func (c *Cache) MemStat(name string) (domain.MemStat, bool) {
	vc, ok := c.VM(name)
	if !ok || !vc.Data.HasMemStat {
		return domain.MemStat{}, false
	}
	return vc.Data.MemStat, true
}

// State returns a VM's DomainState by name.
func (c *Cache) State(name string) (domain.DomainState, bool) {
	vc, ok := c.VM(name)
	if !ok {
		return domain.StateOther, false
	}
	return vc.Data.State, true
}

// Running reports whether the named VM is running.
func (c *Cache) Running(name string) bool {
	vc, ok := c.VM(name)
	return ok && vc.Data.Running()
}

// SetMemory validates new_actual against §4.3's bounds
// (128 MiB ≤ new_actual ≤ info.max_memory) before delegating to the
// HypervisorAdapter.
func (c *Cache) SetMemory(ctx context.Context, name string, newActual uint64) error {
	const minActual = 128 * 1024 * 1024
	info, ok := c.Info(name)
	if !ok {
		return &domain.ValidationError{Field: "name", Reason: "unknown VM: " + name}
	}
	if newActual < minActual || newActual > info.MaxMemory {
		return &domain.ValidationError{
			Field:  "new_actual",
			Reason: "must be between 128 MiB and the VM's max_memory",
		}
	}
	return c.adapter.SetMemory(ctx, name, newActual)
}

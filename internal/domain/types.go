// Package domain holds the value records shared by every layer of the
// dashboard: hypervisor adapter, sampling cache, ballooning controller and
// the TUI. Every type here is an immutable value — mutation happens only by
// constructing a new value and replacing the old one wholesale.
package domain

import "time"

// MemoryStat is a generic total/available memory reading, used for both RAM
// and swap on the host.
type MemoryStat struct {
	Total     uint64 // bytes
	Available uint64 // bytes
}

// Used returns the portion of Total that is not Available.
func (m MemoryStat) Used() uint64 {
	if m.Available >= m.Total {
		return 0
	}
	return m.Total - m.Available
}

// PercentUsed returns the percentage of Total currently used, 0 when Total
// is zero.
func (m MemoryStat) PercentUsed() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Used()) / float64(m.Total) * 100
}

// GuestMemStat is the subset of MemStat that describes in-guest memory
// pressure as reported by the balloon driver. All four fields are either
// present together (balloon-supported VM) or absent together.
type GuestMemStat struct {
	Unused      uint64
	Available   uint64
	Usable      uint64
	DiskCaches  uint64
}

// PercentUsed treats Usable as the guest-visible total and (Usable-Available)
// as the used portion, mirroring how the balloon driver reports pressure.
func (g GuestMemStat) PercentUsed() float64 {
	if g.Usable == 0 {
		return 0
	}
	used := g.Usable
	if g.Available <= g.Usable {
		used = g.Usable - g.Available
	}
	return float64(used) / float64(g.Usable) * 100
}

// MemStat is the per-VM memory record reported by the hypervisor for a
// running domain.
type MemStat struct {
	Actual         uint64 // current balloon target, bytes
	RSS            uint64 // host-side resident set size, bytes
	LastUpdatedSec int64  // hypervisor timestamp of the balloon reading

	// HasGuestData is true when balloon.rss and balloon.last-update were
	// both present in the hypervisor's output. GuestMem is only meaningful
	// when this is true.
	HasGuestData bool
	GuestMem     GuestMemStat
}

// DiskStat describes one disk attached to a domain.
type DiskStat struct {
	Name       string
	Allocation uint64
	Capacity   uint64
	Physical   uint64
	Path       string
	HasPath    bool
}

// OverheadPercent returns round((physical/allocation - 1) * 100) clamped to
// [-100, 999]. Returns 0 when Allocation is zero (nothing to divide by).
func (d DiskStat) OverheadPercent() int {
	if d.Allocation == 0 {
		return 0
	}
	ratio := float64(d.Physical)/float64(d.Allocation) - 1
	pct := int(roundHalfAwayFromZero(ratio * 100))
	if pct < -100 {
		return -100
	}
	if pct > 999 {
		return 999
	}
	return pct
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}

// DomainInfo is the static-for-a-running-VM portion of a domain's data.
type DomainInfo struct {
	Name      string
	CPUs      int
	MaxMemory uint64 // bytes
}

// DomainState enumerates the libvirt domain states this dashboard
// distinguishes. Every other libvirt state (blocked, crashed, pmsuspended,
// ...) maps to StateOther — the dashboard does not need to act on them
// differently than "not running", but §6's external grammar still lets the
// adapter recognize them instead of failing to parse.
type DomainState int

const (
	StateOther DomainState = iota
	StateRunning
	StatePaused
	StateShutOff
)

func (s DomainState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateShutOff:
		return "shut_off"
	default:
		return "other"
	}
}

// DomainData is the full per-VM record produced by one HypervisorAdapter
// sample.
type DomainData struct {
	Info        DomainInfo
	State       DomainState
	SampledAtMS int64 // milliseconds since epoch, captured at call time
	CPUTimeMS   int64 // cumulative guest CPU time, milliseconds

	// MemStat is present if and only if State == StateRunning.
	HasMemStat bool
	MemStat    MemStat

	Disks []DiskStat
}

// Running reports whether this sample observed the domain running. Per the
// explicit Open Question decision in DESIGN.md, "running" here is strict:
// a paused VM is not running.
func (d DomainData) Running() bool {
	return d.State == StateRunning
}

// HostCPUInfo is the static description of the host's CPU topology.
type HostCPUInfo struct {
	Model          string
	Sockets        int
	CoresPerSocket int
	ThreadsPerCore int
}

// CPUs returns the total logical CPU count implied by the topology.
func (h HostCPUInfo) CPUs() int {
	return h.Sockets * h.CoresPerSocket * h.ThreadsPerCore
}

// CPUSample is one reading of the host's aggregate CPU counters.
type CPUSample struct {
	TotalClocks uint64
	IdleClocks  uint64
}

// DiskUsage aggregates the on-host footprint of every qcow2-backed image
// that resolves to a single backing block device.
type DiskUsage struct {
	Usage      MemoryStat
	VMBytes    uint64
	Qcow2Paths []string
}

// HostSample is one reading of host-wide resource counters.
type HostSample struct {
	Mem  MemoryStat
	Swap MemoryStat
	CPU  CPUSample
	// Disks maps device name (e.g. "sda", "nvme0n1") to its aggregated usage.
	Disks map[string]DiskUsage
}

// VMCache is the per-VM derived record the SamplingCache computes from two
// consecutive DomainData samples.
type VMCache struct {
	Data            DomainData
	CPUUsagePercent float64

	// HasMemDataAge is false when the VM has no balloon data or is not
	// running; MemDataAgeSec is only meaningful when true.
	HasMemDataAge bool
	MemDataAgeSec int64
}

// StaleThresholdSec is the minimum mem_data_age_sec for VMCache.Stale to
// report true (§8 seed scenario 4).
const StaleThresholdSec = 7

// Stale reports whether the VM's balloon reading has not advanced recently
// enough to trust. A VM with no age data (no balloon support, or not
// running) is never stale.
func (v VMCache) Stale() bool {
	return v.HasMemDataAge && v.MemDataAgeSec >= StaleThresholdSec
}

// Snapshot is the immutable, whole-system view produced by one
// SamplingCache.Update call.
type Snapshot struct {
	PerVM             map[string]VMCache
	Host              HostSample
	HostCPUPercent    float64
	TotalVMRSS        uint64
	TotalVMCPUPercent float64
	TakenAt           time.Time
}

// VM looks up a VM's cache record by name.
func (s Snapshot) VM(name string) (VMCache, bool) {
	if s.PerVM == nil {
		return VMCache{}, false
	}
	v, ok := s.PerVM[name]
	return v, ok
}

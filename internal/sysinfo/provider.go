// Package sysinfo samples host-wide resource counters (memory, CPU, disk
// usage) without blocking, per spec.md §4.2. It reads /proc files by hand —
// see DESIGN.md for why this does not reach for gopsutil.
package sysinfo

import (
	"bufio"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/vmdash/vmdash/internal/domain"
)

// Provider is a SystemInfoProvider.
type Provider struct {
	meminfoPath string
	statPath    string
	cpuinfoPath string
	dfBinary    string
}

// Option configures a Provider's file paths; tests substitute fixtures.
type Option func(*Provider)

// WithMeminfoPath overrides the default /proc/meminfo path.
func WithMeminfoPath(p string) Option { return func(pr *Provider) { pr.meminfoPath = p } }

// WithStatPath overrides the default /proc/stat path.
func WithStatPath(p string) Option { return func(pr *Provider) { pr.statPath = p } }

// WithCPUInfoPath overrides the default /proc/cpuinfo path.
func WithCPUInfoPath(p string) Option { return func(pr *Provider) { pr.cpuinfoPath = p } }

// WithDFBinary overrides the "df"-style disk-usage binary used by DiskUsage.
func WithDFBinary(bin string) Option { return func(pr *Provider) { pr.dfBinary = bin } }

// New creates a Provider reading the host's real /proc files.
func New(opts ...Option) *Provider {
	p := &Provider{
		meminfoPath: "/proc/meminfo",
		statPath:    "/proc/stat",
		cpuinfoPath: "/proc/cpuinfo",
		dfBinary:    "df",
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// MemoryStats reads the kernel memory counters file and returns the RAM and
// swap MemoryStat, per §4.2.
func (p *Provider) MemoryStats() (ram domain.MemoryStat, swap domain.MemoryStat, err error) {
	f, err := os.Open(p.meminfoPath)
	if err != nil {
		return domain.MemoryStat{}, domain.MemoryStat{}, &domain.InputFormatError{Source: p.meminfoPath, Reason: err.Error()}
	}
	defer f.Close()

	values := make(map[string]uint64)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		key := strings.TrimSuffix(fields[0], ":")
		n, convErr := strconv.ParseUint(fields[1], 10, 64)
		if convErr != nil {
			continue
		}
		values[key] = n * 1024 // kB -> bytes
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return domain.MemoryStat{}, domain.MemoryStat{}, &domain.InputFormatError{Source: p.meminfoPath, Reason: scanErr.Error()}
	}

	required := []string{"MemTotal", "MemAvailable", "SwapTotal", "SwapFree"}
	for _, key := range required {
		if _, ok := values[key]; !ok {
			return domain.MemoryStat{}, domain.MemoryStat{}, &domain.InputFormatError{
				Source: p.meminfoPath,
				Reason: "missing required field " + key,
			}
		}
	}

	ram = domain.MemoryStat{Total: values["MemTotal"], Available: values["MemAvailable"]}
	swap = domain.MemoryStat{Total: values["SwapTotal"], Available: values["SwapFree"]}
	return ram, swap, nil
}

// readCPULine reads the aggregate "cpu " line from /proc/stat into a
// CPUSample, per §6.
func (p *Provider) readCPULine() (domain.CPUSample, error) {
	f, err := os.Open(p.statPath)
	if err != nil {
		return domain.CPUSample{}, &domain.InputFormatError{Source: p.statPath, Reason: err.Error()}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 11 {
			return domain.CPUSample{}, &domain.InputFormatError{Source: p.statPath, Reason: "cpu line has fewer than 10 counters"}
		}
		nums := make([]uint64, 10)
		for i := 0; i < 10; i++ {
			n, convErr := strconv.ParseUint(fields[i+1], 10, 64)
			if convErr != nil {
				return domain.CPUSample{}, &domain.InputFormatError{Source: p.statPath, Reason: "non-numeric cpu counter: " + fields[i+1]}
			}
			nums[i] = n
		}
		user, nice, system, idle, iowait, irq, softirq, steal := nums[0], nums[1], nums[2], nums[3], nums[4], nums[5], nums[6], nums[7]
		idleClocks := idle + iowait
		nonIdle := user + nice + system + irq + softirq + steal
		return domain.CPUSample{TotalClocks: idleClocks + nonIdle, IdleClocks: idleClocks}, nil
	}
	if err := scanner.Err(); err != nil {
		return domain.CPUSample{}, &domain.InputFormatError{Source: p.statPath, Reason: err.Error()}
	}
	return domain.CPUSample{}, &domain.InputFormatError{Source: p.statPath, Reason: "no aggregate cpu line found"}
}

// CPUUsage reads the current aggregate CPU sample and, given the previous
// sample, computes the percent busy over the delta, per §4.2:
// percent = (Δtotal > 0) ? 100·(1 - Δidle/Δtotal) : 0, rounded to 2 decimals.
// When prev is the zero value (hasPrev is false), percent is 0.
func (p *Provider) CPUUsage(prev domain.CPUSample, hasPrev bool) (current domain.CPUSample, percent float64, err error) {
	current, err = p.readCPULine()
	if err != nil {
		return domain.CPUSample{}, 0, err
	}
	if !hasPrev {
		return current, 0, nil
	}
	return current, CPUPercent(prev, current), nil
}

// CPUPercent computes the busy percentage between two samples, rounded to
// two decimal places, per §4.2 / §8 seed scenario 6.
func CPUPercent(prev, cur domain.CPUSample) float64 {
	deltaTotal := int64(cur.TotalClocks) - int64(prev.TotalClocks)
	if deltaTotal <= 0 {
		return 0
	}
	deltaIdle := int64(cur.IdleClocks) - int64(prev.IdleClocks)
	pct := 100 * (1 - float64(deltaIdle)/float64(deltaTotal))
	return math.Round(pct*100) / 100
}

// CPUFlags reads the CPU info file and returns the union of flag names
// across every core, per §4.2.
func (p *Provider) CPUFlags() (map[string]struct{}, error) {
	f, err := os.Open(p.cpuinfoPath)
	if err != nil {
		return nil, &domain.InputFormatError{Source: p.cpuinfoPath, Reason: err.Error()}
	}
	defer f.Close()

	flags := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "flags") && !strings.HasPrefix(line, "Features") {
			continue
		}
		colon := strings.Index(line, ":")
		if colon < 0 {
			continue
		}
		for _, flag := range strings.Fields(line[colon+1:]) {
			flags[flag] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &domain.InputFormatError{Source: p.cpuinfoPath, Reason: err.Error()}
	}
	return flags, nil
}

// Qcow2Source is one disk image the caller wants resolved to its backing
// host block device.
type Qcow2Source struct {
	Path     string
	Physical uint64
}

// DiskUsage resolves each qcow2 path to its backing device via a
// POSIX-portable disk-free invocation, aggregating physical bytes and paths
// per device and merging duplicate device rows, per §4.2. Empty input
// returns an empty mapping.
func (p *Provider) DiskUsage(sources []Qcow2Source) (map[string]domain.DiskUsage, error) {
	result := make(map[string]domain.DiskUsage)
	if len(sources) == 0 {
		return result, nil
	}

	for _, src := range sources {
		device, usage, err := p.dfDevice(src.Path)
		if err != nil {
			continue // unresolvable path: skip, do not fail the whole sample
		}
		existing, ok := result[device]
		if !ok {
			existing = domain.DiskUsage{Usage: usage}
		}
		existing.VMBytes += src.Physical
		existing.Qcow2Paths = append(existing.Qcow2Paths, src.Path)
		result[device] = existing
	}
	return result, nil
}

// dfDevice shells out to `df -P -B1 <path>` (POSIX output format, byte
// blocks) and parses the one data line it produces.
func (p *Provider) dfDevice(path string) (device string, usage domain.MemoryStat, err error) {
	out, err := exec.Command(p.dfBinary, "-P", "-B1", path).Output() //nolint:gosec // path is hypervisor-reported, not user input
	if err != nil {
		return "", domain.MemoryStat{}, err
	}
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) < 2 {
		return "", domain.MemoryStat{}, &domain.InputFormatError{Source: "df", Reason: "unexpected output"}
	}
	fields := strings.Fields(lines[1])
	if len(fields) < 4 {
		return "", domain.MemoryStat{}, &domain.InputFormatError{Source: "df", Reason: "unexpected field count"}
	}
	total, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return "", domain.MemoryStat{}, &domain.InputFormatError{Source: "df", Reason: "non-numeric total"}
	}
	avail, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return "", domain.MemoryStat{}, &domain.InputFormatError{Source: "df", Reason: "non-numeric available"}
	}
	device = fields[0]
	usage = domain.MemoryStat{Total: total, Available: avail}
	return device, usage, nil
}

package hypervisor

import (
	"errors"
	"testing"

	"github.com/vmdash/vmdash/internal/domain"
)

const sampleDomstats = `Domain: "win11"
  state.state=1
  vcpu.maximum=4
  cpu.time=123456789000
  balloon.current=2097152
  balloon.maximum=16777216
  balloon.rss=1900000
  balloon.last-update=1700000000
  balloon.unused=500000
  balloon.available=1600000
  balloon.usable=2000000
  balloon.disk_caches=100000
  block.count=2
  block.0.name=vda
  block.0.allocation=20000000000
  block.0.capacity=25000000000
  block.0.physical=25000000000
  block.1.name=vdb
  block.1.allocation=10000000000
  block.1.capacity=10000000000
  block.1.physical=10000000000
  block.1.path=/mnt/user/domains/win11/vdisk2.img

Domain: "ubuntu"
  state.state=5
  vcpu.maximum=2
  balloon.maximum=8388608
`

func TestParseDomstats_RunningAndShutOff(t *testing.T) {
	result, err := parseDomstats(sampleDomstats, 1_700_000_500_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 domains, got %d", len(result))
	}

	win, ok := result["win11"]
	if !ok {
		t.Fatal("expected win11 domain")
	}
	if win.State != domain.StateRunning {
		t.Fatalf("expected running, got %v", win.State)
	}
	if win.Info.CPUs != 4 {
		t.Fatalf("expected 4 cpus, got %d", win.Info.CPUs)
	}
	if win.Info.MaxMemory != 16777216*1024 {
		t.Fatalf("unexpected max memory: %d", win.Info.MaxMemory)
	}
	if !win.HasMemStat || !win.MemStat.HasGuestData {
		t.Fatal("expected guest balloon data present")
	}
	if win.MemStat.Actual != 2097152*1024 {
		t.Fatalf("unexpected actual: %d", win.MemStat.Actual)
	}
	if win.CPUTimeMS != 123456789000/1_000_000 {
		t.Fatalf("unexpected cpu time ms: %d", win.CPUTimeMS)
	}
	if len(win.Disks) != 2 {
		t.Fatalf("expected 2 disks, got %d", len(win.Disks))
	}
	if win.Disks[0].HasPath {
		t.Fatal("expected first disk to have no path")
	}
	if !win.Disks[1].HasPath || win.Disks[1].Path == "" {
		t.Fatal("expected second disk to carry its path")
	}

	const expectedOverhead = 25 // 25G physical / 20G allocation -> +25%
	if got := win.Disks[0].OverheadPercent(); got != expectedOverhead {
		t.Fatalf("expected overhead %d, got %d", expectedOverhead, got)
	}

	ubuntu, ok := result["ubuntu"]
	if !ok {
		t.Fatal("expected ubuntu domain")
	}
	if ubuntu.State != domain.StateShutOff {
		t.Fatalf("expected shut_off, got %v", ubuntu.State)
	}
	if ubuntu.HasMemStat {
		t.Fatal("shut-off VM must not carry a mem_stat")
	}
	if len(ubuntu.Disks) != 0 {
		t.Fatalf("expected no disks parsed (block.count absent), got %d", len(ubuntu.Disks))
	}
}

func TestParseDomstats_MissingRequiredFieldFailsClosed(t *testing.T) {
	bad := `Domain: "broken"
  state.state=1
  vcpu.maximum=2
  balloon.maximum=1048576
`
	_, err := parseDomstats(bad, 0)
	if err == nil {
		t.Fatal("expected an error for a running VM missing cpu.time/balloon.current")
	}
	var ife *domain.InputFormatError
	if !errors.As(err, &ife) {
		t.Fatalf("expected InputFormatError, got %T: %v", err, err)
	}
}

func TestParseDomstats_UnparseableLineIsIgnored(t *testing.T) {
	in := `Domain: "vm1"
  state.state=5
  vcpu.maximum=1
  balloon.maximum=1048576
  this line has no equals sign and should be ignored
`
	result, err := parseDomstats(in, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := result["vm1"]; !ok {
		t.Fatal("expected vm1 to still parse despite the garbage line")
	}
}

func TestParseNodeInfo(t *testing.T) {
	in := `CPU model:           x86_64
CPU(s):              16
CPU socket(s):       1
Core(s) per socket:  8
Thread(s) per core:  2
CPU frequency:       3600 MHz
`
	info, err := parseNodeInfo(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Sockets != 1 || info.CoresPerSocket != 8 || info.ThreadsPerCore != 2 {
		t.Fatalf("unexpected topology: %+v", info)
	}
	if info.CPUs() != 16 {
		t.Fatalf("expected 16 cpus, got %d", info.CPUs())
	}
}

func TestDiskStatOverheadClamped(t *testing.T) {
	d := domain.DiskStat{Allocation: 1, Physical: 100000}
	if got := d.OverheadPercent(); got != 999 {
		t.Fatalf("expected clamp to 999, got %d", got)
	}
	d2 := domain.DiskStat{Allocation: 100, Physical: 0}
	if got := d2.OverheadPercent(); got != -100 {
		t.Fatalf("expected clamp to -100, got %d", got)
	}
}

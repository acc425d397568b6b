package app

import (
	"fmt"
	"sort"

	"github.com/vmdash/vmdash/internal/domain"
	"github.com/vmdash/vmdash/internal/format"
)

// formatSystemLines renders the SystemWindow's content: host memory, swap,
// CPU and per-disk usage, plus the aggregate VM footprint §4.3 computes.
func formatSystemLines(snap domain.Snapshot) []string {
	lines := []string{
		fmt.Sprintf("host cpu: %.1f%%", snap.HostCPUPercent),
		fmt.Sprintf("host mem: %s / %s (%.0f%% used)",
			format.Bytes(snap.Host.Mem.Used()), format.Bytes(snap.Host.Mem.Total), snap.Host.Mem.PercentUsed()),
		fmt.Sprintf("host swap: %s / %s",
			format.Bytes(snap.Host.Swap.Used()), format.Bytes(snap.Host.Swap.Total)),
		fmt.Sprintf("vm total rss: %s", format.Bytes(snap.TotalVMRSS)),
		fmt.Sprintf("vm total cpu: %.1f%%", snap.TotalVMCPUPercent),
		"",
	}

	names := make([]string, 0, len(snap.Host.Disks))
	for name := range snap.Host.Disks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d := snap.Host.Disks[name]
		lines = append(lines, fmt.Sprintf("disk %s: %s / %s used, %s in qcow2 images",
			name, format.Bytes(d.Usage.Used()), format.Bytes(d.Usage.Total), format.Bytes(d.VMBytes)))
	}
	return lines
}

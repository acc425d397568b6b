package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vmdash/vmdash/internal/balloon"
	"github.com/vmdash/vmdash/internal/domain"
	"github.com/vmdash/vmdash/internal/format"
	"github.com/vmdash/vmdash/internal/tui"
)

// VMWindow is the tiled window listing every VM, one line per domain, with
// its cursor tracking which VM line the per-VM key map (§4.7) applies to.
type VMWindow struct {
	*tui.Window
	names          []string // current line order, rebuilt on every Refresh
	diskStatsShown map[string]bool
}

// NewVMWindow creates an empty VMWindow.
func NewVMWindow() *VMWindow {
	w := tui.NewWindow("VMs")
	w.AutoScroll = false
	return &VMWindow{Window: w, diskStatsShown: make(map[string]bool)}
}

// SelectedVM returns the VM name the cursor currently sits on, if any.
func (v *VMWindow) SelectedVM() (string, bool) {
	pos := v.Cursor().Position()
	if pos < 0 || pos >= len(v.names) {
		return "", false
	}
	return v.names[pos], true
}

// ToggleDiskStats flips whether disk stats are shown for a shut-off VM's
// line, per the 'd' key of §4.7's per-VM key map.
func (v *VMWindow) ToggleDiskStats(name string) {
	v.diskStatsShown[name] = !v.diskStatsShown[name]
}

// Refresh rebuilds the window's content from the latest snapshot, sorted by
// name for a stable line order the cursor can track across ticks.
func (v *VMWindow) Refresh(snap domain.Snapshot, bc *balloon.Controller) {
	names := make([]string, 0, len(snap.PerVM))
	for name := range snap.PerVM {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		vc := snap.PerVM[name]
		status, _ := bc.Status(name)
		lines = append(lines, formatVMLine(name, vc, status, bc.Enabled(name), v.diskStatsShown[name]))
	}

	v.names = names
	v.SetContent(lines)
}

func formatVMLine(name string, vc domain.VMCache, ballooningStatus string, ballooningEnabled bool, showDisks bool) string {
	state := vc.Data.State.String()
	var mem string
	if vc.Data.HasMemStat {
		mem = fmt.Sprintf("%s/%s", format.Bytes(vc.Data.MemStat.Actual), format.Bytes(vc.Data.Info.MaxMemory))
	} else {
		mem = "-"
	}

	cpu := "-"
	if vc.Data.Running() {
		cpu = fmt.Sprintf("%.1f%%", vc.CPUUsagePercent)
	}

	balloonStr := "n/a"
	if vc.Data.HasMemStat && vc.Data.MemStat.HasGuestData {
		balloonStr = fmt.Sprintf("%.0f%% used", vc.Data.MemStat.GuestMem.PercentUsed())
		if vc.Stale() {
			balloonStr += " (stale)"
		}
	}

	auto := "off"
	if ballooningEnabled {
		auto = "on"
	}

	line := fmt.Sprintf("%-20s %-9s cpu=%-7s mem=%-18s balloon=%-16s auto=%-3s %s",
		name, state, cpu, mem, balloonStr, auto, ballooningStatus)

	// Disk stats are kept on the same line (never an embedded newline) so
	// the cursor's line index keeps matching v.names' index one-for-one.
	if showDisks && vc.Data.State == domain.StateShutOff && len(vc.Data.Disks) > 0 {
		var b strings.Builder
		for i, d := range vc.Data.Disks {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fmt.Sprintf("%s: alloc=%s cap=%s overhead=%d%%",
				d.Name, format.Bytes(d.Allocation), format.Bytes(d.Capacity), d.OverheadPercent()))
		}
		line += "  disks[" + b.String() + "]"
	}
	return line
}

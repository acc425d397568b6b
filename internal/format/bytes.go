// Package format holds small human-readable rendering helpers shared by the
// ballooning controller's status text and the TUI windows.
package format

import "fmt"

// Bytes renders a byte count as a compact human-readable string using
// binary units (1024-based), one decimal place, no separating space —
// e.g. 2791728742 -> "2.6G". Mirrors the teacher's memory-display helpers,
// collapsed to a single letter unit to fit the ballooning status line.
func Bytes(n uint64) string {
	const unit = 1024.0
	value := float64(n)
	units := []string{"B", "K", "M", "G", "T", "P"}
	i := 0
	for value >= unit && i < len(units)-1 {
		value /= unit
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%.0f%s", value, units[i])
	}
	return fmt.Sprintf("%.1f%s", value, units[i])
}

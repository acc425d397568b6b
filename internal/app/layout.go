package app

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/vmdash/vmdash/internal/tui"
)

const (
	statusBarHeight  = 1
	bottomPaneHeight = 13
	minVMHeight      = 3
)

// relayout implements §4.7's relayout policy: the VM list occupies the top
// portion; below it, SystemWindow (left, width = min(screen/2, 60), height
// 13) and LogWindow (right); the last row is reserved for the status bar.
// This is the AppController's relayout_tiled — per §4.6, popups never
// receive layout from the Screen beyond centering, only tiled windows are
// positioned here.
func relayout(vmWin, sysWin, logWin *tui.Window, screenW, screenH int) {
	if screenW < 1 {
		screenW = 1
	}
	if screenH < 1 {
		screenH = 1
	}

	vmHeight := screenH - bottomPaneHeight - statusBarHeight
	if vmHeight < minVMHeight {
		vmHeight = minVMHeight
	}

	sysWidth := screenW / 2
	if sysWidth > 60 {
		sysWidth = 60
	}
	logWidth := screenW - sysWidth

	vmWin.Rect = tui.Rect{X: 0, Y: 0, Width: screenW, Height: vmHeight}
	sysWin.Rect = tui.Rect{X: 0, Y: vmHeight, Width: sysWidth, Height: bottomPaneHeight}
	logWin.Rect = tui.Rect{X: sysWidth, Y: vmHeight, Width: logWidth, Height: bottomPaneHeight}
}

// render composites the Screen's current tiled windows and popup stack into
// a flat slice of terminal rows, plus the status bar, for bubbletea to draw
// as the View. Popups over-draw the tiled windows beneath them rather than
// clipping, per §4.6's explicit repaint policy.
func render(screen *tui.Screen, w, h int) []string {
	if w < 1 || h < 1 {
		return nil
	}

	base := make([]string, h)
	for i := range base {
		base[i] = strings.Repeat(" ", w)
	}

	for _, tw := range screen.TiledWindows() {
		base = overlay(base, w, h, tw.Window.Rect, renderWindowBlock(tw.Window))
	}
	for _, p := range screen.Popups() {
		base = overlay(base, w, h, p.Rect, renderWindowBlock(p.Window))
	}

	contentHeight := h - statusBarHeight
	if contentHeight < 0 {
		contentHeight = 0
	}
	if len(base) > contentHeight {
		base = base[:contentHeight]
	}
	return append(base, statusBarText(screen, w))
}

// overlay splices block's rows into base at rect's position, clamped to the
// base's bounds, without touching any row/column block does not cover —
// this is the over-draw-not-clip behavior §4.6 mandates for popups.
func overlay(base []string, w, h int, rect tui.Rect, block []string) []string {
	for i, line := range block {
		y := rect.Y + i
		if y < 0 || y >= h || y >= len(base) {
			continue
		}
		row := []rune(base[y])
		for len(row) < w {
			row = append(row, ' ')
		}
		lr := []rune(line)
		for j, r := range lr {
			x := rect.X + j
			if x < 0 || x >= w {
				continue
			}
			row[x] = r
		}
		base[y] = string(row)
	}
	return base
}

// renderWindowBlock renders one Window (tiled or popup) as a bordered block
// of exactly Rect.Width x Rect.Height runes, via lipgloss.
func renderWindowBlock(w *tui.Window) []string {
	if w.Rect.Width < 2 || w.Rect.Height < 2 {
		return []string{}
	}
	innerW := w.Rect.Width - 2
	innerH := w.Rect.Height - 2

	var body strings.Builder
	vp := w.Lines()
	top := w.TopLine()
	cursorPos := w.Cursor().Position()
	for i := 0; i < innerH; i++ {
		idx := top + i
		if i > 0 {
			body.WriteByte('\n')
		}
		if idx < 0 || idx >= len(vp) {
			continue
		}
		prefix := "  "
		if w.Active && cursorPos == idx {
			prefix = "> "
		}
		line := prefix + vp[idx]
		if tui.VisibleWidth(line) > innerW {
			line = truncateVisible(line, innerW)
		}
		body.WriteString(line)
	}

	style := lipgloss.NewStyle().
		Width(innerW).
		Height(innerH).
		Border(lipgloss.NormalBorder())
	if w.Active {
		style = style.BorderForeground(lipgloss.Color("12"))
	}
	rendered := style.Render(body.String())
	caption := w.Caption
	if w.Shortcut != "" {
		caption = w.Shortcut + ":" + caption
	}
	rows := strings.Split(rendered, "\n")
	if len(rows) > 0 && tui.VisibleWidth(caption)+2 < w.Rect.Width {
		rows[0] = stampCaption(rows[0], caption)
	}
	return rows
}

func stampCaption(topBorder, caption string) string {
	runes := []rune(topBorder)
	label := []rune(" " + caption + " ")
	start := 2
	if start+len(label) > len(runes) {
		return topBorder
	}
	copy(runes[start:start+len(label)], label)
	return string(runes)
}

func truncateVisible(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width < 1 {
		return ""
	}
	return string(r[:width])
}

// statusKeyMap renders the status bar's key hints via bubbles/help, so the
// quit/switch-window bindings and the active window's per-VM bindings share
// one consistent rendering instead of a hand-built hint string.
type statusKeyMap struct {
	quit    key.Binding
	switch1 key.Binding
	perVM   []key.Binding
}

func (k statusKeyMap) ShortHelp() []key.Binding {
	return append([]key.Binding{k.quit, k.switch1}, k.perVM...)
}

func (k statusKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var vmWindowBindings = []key.Binding{
	key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "power")),
	key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "viewer")),
	key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "balloon")),
	key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "disks")),
}

func statusBarText(screen *tui.Screen, w int) string {
	km := statusKeyMap{
		quit:    key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q/esc", "quit")),
		switch1: key.NewBinding(key.WithKeys("1", "2", "3"), key.WithHelp("1/2/3", "switch window")),
	}
	if active := screen.ActiveWindow(); active != nil && active.Caption == "VMs" {
		km.perVM = vmWindowBindings
	}

	h := help.New()
	h.ShowAll = false
	hint := h.View(km)

	if tui.VisibleWidth(hint) > w {
		hint = truncateVisible(hint, w)
	}
	if pad := w - tui.VisibleWidth(hint); pad > 0 {
		hint += strings.Repeat(" ", pad)
	}
	return hint
}

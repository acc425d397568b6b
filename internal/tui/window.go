package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Rect is a window's screen position and size.
type Rect struct {
	X, Y, Width, Height int
}

// VisibleWidth returns the printable width of s, ignoring ANSI escapes —
// §4.6: "printable width is measured after stripping ANSI".
func VisibleWidth(s string) int {
	return runewidth.StringWidth(lipgloss.NewStyle().Render(stripANSI(s)))
}

func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
		case r == 0x1b:
			inEscape = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Window is the base behavior shared by every visible component: tiled
// windows and popups alike, per §4.6.
type Window struct {
	Rect       Rect
	Caption    string
	Shortcut   string
	Active     bool
	AutoScroll bool

	lines   []string
	topLine int
	cursor  Cursor
	invalid bool
}

// NewWindow creates a Window with a Free cursor and auto-scroll enabled —
// the defaults §4.6 describes.
func NewWindow(caption string) *Window {
	return &Window{
		Caption:    caption,
		AutoScroll: true,
		cursor:     NewFreeCursor(0),
	}
}

// Lines returns the window's current content.
func (w *Window) Lines() []string { return w.lines }

// TopLine returns the first visible line index.
func (w *Window) TopLine() int { return w.topLine }

// Cursor returns the window's cursor.
func (w *Window) Cursor() Cursor { return w.cursor }

// SetCursor installs a new cursor variant (e.g. switching to Limited).
func (w *Window) SetCursor(c Cursor) {
	w.cursor = c
	w.invalidate()
}

// Invalidated reports whether the window needs to repaint.
func (w *Window) Invalidated() bool { return w.invalid }

// MarkClean clears the invalidation flag after a repaint.
func (w *Window) MarkClean() { w.invalid = false }

func (w *Window) invalidate() { w.invalid = true }

func (w *Window) viewportLines() int {
	h := w.Rect.Height - 2 // caption + border
	if h < 1 {
		h = 1
	}
	return h
}

// SetContent replaces all content. Per §4.6, splits input by newline and,
// if AutoScroll, snaps top_line to max(0, len-viewport).
func (w *Window) SetContent(lines []string) {
	var split []string
	for _, l := range lines {
		split = append(split, strings.Split(l, "\n")...)
	}
	w.lines = split
	if w.cursor.kind == CursorFree {
		w.cursor.SetLength(len(w.lines))
	}
	if w.AutoScroll {
		w.snapToBottom()
	}
	w.invalidate()
}

// AddLine appends one line (itself possibly containing embedded newlines).
func (w *Window) AddLine(line string) {
	w.AddLines([]string{line})
}

// AddLines appends lines, splitting embedded newlines, per §4.6.
func (w *Window) AddLines(lines []string) {
	for _, l := range lines {
		w.lines = append(w.lines, strings.Split(l, "\n")...)
	}
	if w.cursor.kind == CursorFree {
		w.cursor.SetLength(len(w.lines))
	}
	if w.AutoScroll {
		w.snapToBottom()
	}
	w.invalidate()
}

func (w *Window) snapToBottom() {
	max := len(w.lines) - w.viewportLines()
	if max < 0 {
		max = 0
	}
	w.topLine = max
}

// scrollToCursor keeps the cursor's line within the visible viewport.
func (w *Window) scrollToCursor() {
	pos := w.cursor.Position()
	if pos < 0 {
		return
	}
	vp := w.viewportLines()
	if pos < w.topLine {
		w.topLine = pos
	} else if pos >= w.topLine+vp {
		w.topLine = pos - vp + 1
	}
	if w.topLine < 0 {
		w.topLine = 0
	}
}

// HandleKey implements §4.6's default key map. Returns true if the key was
// consumed.
func (w *Window) HandleKey(key string) bool {
	if w.cursor.kind == CursorNone {
		return false
	}
	vp := w.viewportLines()
	switch key {
	case "up", "k":
		w.cursor.Up()
	case "down", "j":
		w.cursor.Down()
	case "pgup":
		w.topLine -= vp
		if w.topLine < 0 {
			w.topLine = 0
		}
		w.invalidate()
		return true
	case "pgdown":
		w.topLine += vp
		max := len(w.lines) - vp
		if max < 0 {
			max = 0
		}
		if w.topLine > max {
			w.topLine = max
		}
		w.invalidate()
		return true
	case "home":
		w.cursor.First()
	case "end":
		w.cursor.Last()
	case "ctrl+u":
		w.topLine -= vp / 2
		if w.topLine < 0 {
			w.topLine = 0
		}
		w.invalidate()
		return true
	case "ctrl+d":
		w.topLine += vp / 2
		max := len(w.lines) - vp
		if max < 0 {
			max = 0
		}
		if w.topLine > max {
			w.topLine = max
		}
		w.invalidate()
		return true
	default:
		return false
	}
	w.scrollToCursor()
	w.invalidate()
	return true
}

// HandleMouse implements §4.6's default mouse behavior.
func (w *Window) HandleMouse(button string, x, y int) bool {
	if w.cursor.kind == CursorNone {
		return false
	}
	switch button {
	case "scroll-up":
		for i := 0; i < 4; i++ {
			w.cursor.Up()
		}
	case "scroll-down":
		for i := 0; i < 4; i++ {
			w.cursor.Down()
		}
	case "left":
		line := w.topLine + y
		if line >= 0 && line < len(w.lines) {
			w.cursor.MoveTo(line)
		}
	default:
		return false
	}
	w.scrollToCursor()
	w.invalidate()
	return true
}

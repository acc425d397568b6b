package tui

// PopupWindow is a centered, content-sized overlay, per §4.6. It embeds
// Window for scrolling/cursor/content behavior and adds sizing, centering
// and close-on-q/Esc semantics.
type PopupWindow struct {
	*Window
	screenW, screenH int
	open             bool
	// onKey, if set, is consulted before the default close-on-q/Esc
	// handling — used by PickerWindow to intercept single-character keys.
	onKey func(key string) (consumed bool, shouldClose bool)
}

// NewPopupWindow creates a closed PopupWindow sized against screenW/H.
func NewPopupWindow(caption string, screenW, screenH int) *PopupWindow {
	return &PopupWindow{
		Window:  NewWindow(caption),
		screenW: screenW,
		screenH: screenH,
	}
}

const maxPopupHeight = 20 // rows; also clamped to 80% of screen height

// SetContent replaces content and recomputes size/position, per §4.6:
// width = max line width + 4, height = min(content+2, max_height), clamped
// to 80% of screen; recenters if open; switches to a Free cursor when
// content exceeds max_height.
func (p *PopupWindow) SetContent(lines []string) {
	p.Window.SetContent(lines)
	p.resize()
}

func (p *PopupWindow) resize() {
	maxWidth := int(float64(p.screenW) * 0.8)
	maxHeight := maxPopupHeight
	if screenCap := int(float64(p.screenH) * 0.8); screenCap < maxHeight {
		maxHeight = screenCap
	}

	width := 0
	for _, l := range p.Lines() {
		if w := VisibleWidth(l); w > width {
			width = w
		}
	}
	width += 4
	if width > maxWidth {
		width = maxWidth
	}

	height := len(p.Lines()) + 2
	if height > maxHeight {
		height = maxHeight
	}

	p.Rect.Width = width
	p.Rect.Height = height

	if len(p.Lines()) > height-2 {
		p.SetCursor(NewFreeCursor(len(p.Lines())))
	} else {
		p.SetCursor(NewNoneCursor())
	}

	if p.open {
		p.center()
	}
}

func (p *PopupWindow) center() {
	p.Rect.X = (p.screenW - p.Rect.Width) / 2
	if p.Rect.X < 0 {
		p.Rect.X = 0
	}
	p.Rect.Y = (p.screenH - p.Rect.Height) / 2
	if p.Rect.Y < 0 {
		p.Rect.Y = 0
	}
}

// Open marks the popup visible and centers it.
func (p *PopupWindow) Open() {
	p.open = true
	p.center()
}

// IsOpen reports whether the popup is currently shown.
func (p *PopupWindow) IsOpen() bool { return p.open }

// HandleKey gives a subclass's onKey hook first refusal, then closes on
// q/Esc, then falls back to the base Window key map.
func (p *PopupWindow) HandleKey(key string) (consumed bool, shouldClose bool) {
	if p.onKey != nil {
		if consumed, shouldClose = p.onKey(key); consumed {
			return consumed, shouldClose
		}
	}
	if key == "q" || key == "esc" {
		return true, true
	}
	return p.Window.HandleKey(key), false
}

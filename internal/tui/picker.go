package tui

// PickerOption is one single-key choice offered by a PickerWindow.
type PickerOption struct {
	Key      string
	Label    string
	Callback func()
}

// PickerWindow is a PopupWindow that maps single-character keys to
// callbacks, per §4.6: pressing a listed key, or Enter when the cursor is
// on an option, invokes the callback and closes; up/down/k/j move the
// cursor, q/Esc close via PopupWindow, and all other keys close silently.
type PickerWindow struct {
	*PopupWindow
	options []PickerOption
}

// NewPickerWindow creates a PickerWindow and lays out one line per option.
func NewPickerWindow(caption string, screenW, screenH int, options []PickerOption) *PickerWindow {
	pw := &PickerWindow{
		PopupWindow: NewPopupWindow(caption, screenW, screenH),
		options:     options,
	}
	lines := make([]string, len(options))
	for i, o := range options {
		lines[i] = o.Key + "  " + o.Label
	}
	pw.PopupWindow.onKey = pw.handleKey
	pw.SetContent(lines)
	// A picker always needs a cursor to select among its options, regardless
	// of whether the content overflows the popup's max height.
	pw.SetCursor(NewFreeCursor(len(options)))
	return pw
}

func (pw *PickerWindow) handleKey(key string) (consumed bool, shouldClose bool) {
	for _, o := range pw.options {
		if o.Key == key {
			if o.Callback != nil {
				o.Callback()
			}
			return true, true
		}
	}
	if key == "enter" {
		pos := pw.Cursor().Position()
		if pos >= 0 && pos < len(pw.options) {
			if cb := pw.options[pos].Callback; cb != nil {
				cb()
			}
		}
		return true, true
	}
	switch key {
	case "up", "down", "k", "j", "q", "esc":
		// Navigation passes through to the base Window / default
		// close-on-q/Esc handling.
		return false, false
	default:
		// Any other key closes the picker silently, per §4.6.
		return true, true
	}
}

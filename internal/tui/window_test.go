package tui

import "testing"

func TestWindow_AutoScrollSnapsToBottom(t *testing.T) {
	w := NewWindow("log")
	w.Rect = Rect{Width: 40, Height: 7} // viewport = 5
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "line"
	}
	w.SetContent(lines)
	if w.TopLine() != 15 {
		t.Fatalf("expected top_line 15 (20-5), got %d", w.TopLine())
	}
}

func TestWindow_AddLinesSplitsEmbeddedNewlines(t *testing.T) {
	w := NewWindow("log")
	w.AddLine("a\nb\nc")
	if len(w.Lines()) != 3 {
		t.Fatalf("expected 3 lines, got %d: %v", len(w.Lines()), w.Lines())
	}
}

func TestWindow_HandleKeyMovesCursorAndScrolls(t *testing.T) {
	w := NewWindow("vms")
	w.AutoScroll = false
	w.Rect = Rect{Width: 40, Height: 5} // viewport = 3
	w.SetContent([]string{"1", "2", "3", "4", "5", "6"})

	for i := 0; i < 4; i++ {
		w.HandleKey("down")
	}
	if w.Cursor().Position() != 4 {
		t.Fatalf("expected cursor at 4, got %d", w.Cursor().Position())
	}
	if w.TopLine() > 4 {
		t.Fatalf("expected viewport scrolled to keep cursor visible, top_line=%d", w.TopLine())
	}
}

func TestVisibleWidth_IgnoresANSIEscapes(t *testing.T) {
	colored := "\x1b[31mred\x1b[0m"
	if got := VisibleWidth(colored); got != 3 {
		t.Fatalf("expected width 3, got %d", got)
	}
}

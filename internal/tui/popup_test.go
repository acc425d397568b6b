package tui

import "testing"

func TestPopupWindow_SizesFromContentAndCenters(t *testing.T) {
	p := NewPopupWindow("confirm", 100, 40)
	p.Open()
	p.SetContent([]string{"short", "a longer line here"})

	wantWidth := VisibleWidth("a longer line here") + 4
	if p.Rect.Width != wantWidth {
		t.Fatalf("expected width %d, got %d", wantWidth, p.Rect.Width)
	}
	if p.Rect.Height != 4 { // 2 lines + 2
		t.Fatalf("expected height 4, got %d", p.Rect.Height)
	}
	wantX := (100 - p.Rect.Width) / 2
	if p.Rect.X != wantX {
		t.Fatalf("expected centered x=%d, got %d", wantX, p.Rect.X)
	}
}

func TestPopupWindow_ClampsToEightyPercentOfScreen(t *testing.T) {
	p := NewPopupWindow("huge", 50, 50)
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = "x"
	}
	p.SetContent(lines)
	if p.Rect.Width > 40 { // 80% of 50
		t.Fatalf("expected width clamped to 80%% of screen, got %d", p.Rect.Width)
	}
	if p.Rect.Height > 40 {
		t.Fatalf("expected height clamped, got %d", p.Rect.Height)
	}
}

func TestPopupWindow_ClosesOnQAndEsc(t *testing.T) {
	p := NewPopupWindow("info", 80, 24)
	p.SetContent([]string{"hello"})
	p.Open()

	if _, shouldClose := p.HandleKey("q"); !shouldClose {
		t.Fatal("expected q to close the popup")
	}
	if _, shouldClose := p.HandleKey("esc"); !shouldClose {
		t.Fatal("expected esc to close the popup")
	}
}

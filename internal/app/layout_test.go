package app

import (
	"strings"
	"testing"

	"github.com/vmdash/vmdash/internal/tui"
)

func TestRelayout_SplitsScreenPerPolicy(t *testing.T) {
	vmWin := tui.NewWindow("VMs")
	sysWin := tui.NewWindow("System")
	logWin := tui.NewWindow("Log")

	relayout(vmWin, sysWin, logWin, 100, 40)

	if vmWin.Rect.Height != 40-bottomPaneHeight-statusBarHeight {
		t.Fatalf("vm window height = %d, want %d", vmWin.Rect.Height, 40-bottomPaneHeight-statusBarHeight)
	}
	if sysWin.Rect.Width != 50 {
		t.Fatalf("sys window width = %d, want 50 (screen/2)", sysWin.Rect.Width)
	}
	if sysWin.Rect.Y != vmWin.Rect.Height || logWin.Rect.Y != vmWin.Rect.Height {
		t.Fatalf("bottom pane not aligned under vm window")
	}
	if logWin.Rect.X != sysWin.Rect.Width {
		t.Fatalf("log window does not start where sys window ends")
	}
}

func TestRelayout_ClampsSysWidthTo60(t *testing.T) {
	vmWin := tui.NewWindow("VMs")
	sysWin := tui.NewWindow("System")
	logWin := tui.NewWindow("Log")

	relayout(vmWin, sysWin, logWin, 200, 40)

	if sysWin.Rect.Width != 60 {
		t.Fatalf("sys window width = %d, want clamp of 60", sysWin.Rect.Width)
	}
}

func TestRelayout_EnforcesMinVMHeight(t *testing.T) {
	vmWin := tui.NewWindow("VMs")
	sysWin := tui.NewWindow("System")
	logWin := tui.NewWindow("Log")

	relayout(vmWin, sysWin, logWin, 80, 10)

	if vmWin.Rect.Height != minVMHeight {
		t.Fatalf("vm window height = %d, want floor of %d", vmWin.Rect.Height, minVMHeight)
	}
}

func TestOverlay_SplicesWithoutTouchingUncoveredCells(t *testing.T) {
	base := []string{"..........", ".........."}
	block := []string{"AB"}
	out := overlay(base, 10, 2, tui.Rect{X: 2, Y: 1}, block)
	if out[0] != ".........." {
		t.Fatalf("row 0 should be untouched, got %q", out[0])
	}
	if !strings.HasPrefix(out[1][2:4], "AB") {
		t.Fatalf("row 1 should have AB spliced at col 2, got %q", out[1])
	}
}

func TestTruncateVisible(t *testing.T) {
	if got := truncateVisible("hello world", 5); got != "hello" {
		t.Fatalf("got %q", got)
	}
	if got := truncateVisible("hi", 5); got != "hi" {
		t.Fatalf("short string should pass through unchanged, got %q", got)
	}
}

func TestStampCaption_InsertsLabelIntoTopBorder(t *testing.T) {
	border := "+--------------+"
	got := stampCaption(border, "VMs")
	if !strings.Contains(got, "VMs") {
		t.Fatalf("expected caption stamped into border, got %q", got)
	}
	if len(got) != len(border) {
		t.Fatalf("stamping must not change the border's width, got len %d want %d", len(got), len(border))
	}
}

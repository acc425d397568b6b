package tui

import (
	"math/rand"
	"testing"
)

// Property: for the cursor, after any sequence of Up/Down keys the
// position remains in [0, len-1] (Free) or in the allowed set (Limited).
func TestCursor_FreeStaysInBounds(t *testing.T) {
	const length = 7
	c := NewFreeCursor(length)
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		if r.Intn(2) == 0 {
			c.Up()
		} else {
			c.Down()
		}
		if c.Position() < 0 || c.Position() > length-1 {
			t.Fatalf("position %d escaped [0,%d]", c.Position(), length-1)
		}
	}
}

func TestCursor_LimitedStaysInAllowedSet(t *testing.T) {
	allowed := []int{0, 2, 4, 8}
	c := NewLimitedCursor(allowed, 0)
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 500; i++ {
		if r.Intn(2) == 0 {
			c.Up()
		} else {
			c.Down()
		}
		if !isAllowed(allowed, c.Position()) {
			t.Fatalf("position %d not in allowed set %v", c.Position(), allowed)
		}
	}
}

func isAllowed(allowed []int, pos int) bool {
	for _, a := range allowed {
		if a == pos {
			return true
		}
	}
	return false
}

// Seed scenario 7: Limited([0,2,4,8], requested=7) starts at 4; after one
// Down, position=8; one more Down, position stays at 8.
func TestCursor_LimitedSnapScenario7(t *testing.T) {
	c := NewLimitedCursor([]int{0, 2, 4, 8}, 7)
	if c.Position() != 4 {
		t.Fatalf("expected initial snap to 4, got %d", c.Position())
	}
	c.Down()
	if c.Position() != 8 {
		t.Fatalf("expected 8 after one Down, got %d", c.Position())
	}
	c.Down()
	if c.Position() != 8 {
		t.Fatalf("expected position to stay at 8, got %d", c.Position())
	}
}

func TestCursor_NoneIgnoresMovement(t *testing.T) {
	c := NewNoneCursor()
	c.Up()
	c.Down()
	if c.Position() != -1 {
		t.Fatalf("expected -1, got %d", c.Position())
	}
}

// Package tui implements the Screen/Window model of spec.md §4.6: tiled
// windows plus a LIFO popup stack, a shared Window base with scrolling and
// a pluggable Cursor, and the repaint-coalescing policy that accepts
// occasional over-drawing in exchange for not needing clipping logic.
package tui

// CursorKind distinguishes the three cursor variants of §4.6.
type CursorKind int

const (
	// CursorNone ignores all keys; position is always -1.
	CursorNone CursorKind = iota
	// CursorFree may occupy any line index 0..len-1. Default variant.
	CursorFree
	// CursorLimited may only occupy a fixed, ordered set of line indices.
	CursorLimited
)

// Cursor tracks a Window's current line position under one of the three
// variants from §4.6.
type Cursor struct {
	kind    CursorKind
	pos     int
	allowed []int // sorted ascending, only meaningful for CursorLimited
	length  int   // line count, only meaningful for CursorFree
}

// NewNoneCursor creates a Cursor that never moves.
func NewNoneCursor() Cursor {
	return Cursor{kind: CursorNone, pos: -1}
}

// NewFreeCursor creates a Cursor that may occupy any index in [0, length).
func NewFreeCursor(length int) Cursor {
	pos := 0
	if length <= 0 {
		pos = -1
	}
	return Cursor{kind: CursorFree, pos: pos, length: length}
}

// NewLimitedCursor creates a Cursor restricted to positions, starting at
// the greatest allowed position <= requested (or the smallest allowed
// position if requested is below all of them).
func NewLimitedCursor(positions []int, requested int) Cursor {
	c := Cursor{kind: CursorLimited, allowed: append([]int(nil), positions...)}
	if len(c.allowed) == 0 {
		c.pos = -1
		return c
	}
	c.pos = c.allowed[0]
	for _, p := range c.allowed {
		if p <= requested {
			c.pos = p
		} else {
			break
		}
	}
	return c
}

// Position returns the cursor's current line index, or -1 if there is none.
func (c Cursor) Position() int { return c.pos }

// SetLength updates the bound used by CursorFree, clamping pos into range.
func (c *Cursor) SetLength(length int) {
	if c.kind != CursorFree {
		return
	}
	c.length = length
	if length <= 0 {
		c.pos = -1
		return
	}
	if c.pos < 0 {
		c.pos = 0
	} else if c.pos > length-1 {
		c.pos = length - 1
	}
}

// Down moves the cursor one step forward, per variant semantics.
func (c *Cursor) Down() {
	switch c.kind {
	case CursorFree:
		if c.length == 0 {
			return
		}
		if c.pos < c.length-1 {
			c.pos++
		}
	case CursorLimited:
		for _, p := range c.allowed {
			if p > c.pos {
				c.pos = p
				return
			}
		}
	}
}

// Up moves the cursor one step backward, per variant semantics.
func (c *Cursor) Up() {
	switch c.kind {
	case CursorFree:
		if c.pos > 0 {
			c.pos--
		}
	case CursorLimited:
		for i := len(c.allowed) - 1; i >= 0; i-- {
			if c.allowed[i] < c.pos {
				c.pos = c.allowed[i]
				return
			}
		}
	}
}

// MoveTo jumps directly to a line index, clamped/snapped per variant.
func (c *Cursor) MoveTo(index int) {
	switch c.kind {
	case CursorFree:
		if index < 0 {
			index = 0
		}
		if c.length > 0 && index > c.length-1 {
			index = c.length - 1
		}
		c.pos = index
	case CursorLimited:
		*c = NewLimitedCursor(c.allowed, index)
	}
}

// First moves to the first valid position (Home).
func (c *Cursor) First() {
	switch c.kind {
	case CursorFree:
		if c.length > 0 {
			c.pos = 0
		}
	case CursorLimited:
		if len(c.allowed) > 0 {
			c.pos = c.allowed[0]
		}
	}
}

// Last moves to the last valid position (End).
func (c *Cursor) Last() {
	switch c.kind {
	case CursorFree:
		if c.length > 0 {
			c.pos = c.length - 1
		}
	case CursorLimited:
		if len(c.allowed) > 0 {
			c.pos = c.allowed[len(c.allowed)-1]
		}
	}
}

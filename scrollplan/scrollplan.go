// CLAUDE:SUMMARY Scroll scheduling: page geometry type and the offset plan computation with trailing blank-frame correction.
// Package scrollplan computes the ordered scroll offsets a comparison run
// must visit to cover two pages viewport by viewport.
//
// The plan is derived from both pages' content heights so that the two
// sessions always scroll in lockstep: the taller page dictates the number of
// frames, and the last offset never lies entirely beyond real content.
package scrollplan

import "fmt"

// Geometry is one session's measured page geometry. It is captured once,
// after an explicit scroll-to-top, and stays fixed for the whole run.
type Geometry struct {
	ContentHeight  int // total scrollable document height, px
	ViewportWidth  int // rendering surface width, px
	ViewportHeight int // rendering surface height, px
}

// Validate checks the geometry invariants.
func (g Geometry) Validate() error {
	if g.ViewportHeight < 1 {
		return fmt.Errorf("scrollplan: viewport height %d < 1", g.ViewportHeight)
	}
	if g.ViewportWidth < 1 {
		return fmt.Errorf("scrollplan: viewport width %d < 1", g.ViewportWidth)
	}
	if g.ContentHeight < g.ViewportHeight {
		return fmt.Errorf("scrollplan: content height %d < viewport height %d",
			g.ContentHeight, g.ViewportHeight)
	}
	return nil
}

// Plan returns the ordered scroll offsets for a run over two pages.
//
// Offsets step by a full viewport height starting at 0. Naive ceiling
// division overcounts by exactly one frame whenever the taller page's height
// is not a multiple of the viewport height; that candidate's offset would lie
// at or past the end of the content and produce a blank trailing frame, so it
// is removed. A frame with partial content at the bottom is always kept.
//
// A page shorter than one viewport yields the single-element plan [0].
func Plan(heightA, heightB, viewportHeight int) []int {
	if viewportHeight < 1 {
		viewportHeight = 1
	}
	maxHeight := heightA
	if heightB > maxHeight {
		maxHeight = heightB
	}

	n := (maxHeight + viewportHeight - 1) / viewportHeight
	if n < 1 {
		n = 1
	}
	// Trailing blank-frame correction: drop the last candidate when its
	// offset starts at or beyond the actual content.
	if n > 1 && (n-1)*viewportHeight >= maxHeight {
		n--
	}

	offsets := make([]int, n)
	for i := range offsets {
		offsets[i] = i * viewportHeight
	}
	return offsets
}

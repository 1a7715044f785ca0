// CLAUDE:SUMMARY Connected-component extraction over the binarized difference mask, with noise suppression and overlap merging.
package imagediff

import "sort"

// extractRegions groups changed pixels into connected components
// (8-connectivity, iterative flood fill in scan order), drops components
// whose bounding box is smaller than minArea, and merges overlapping boxes
// so the returned regions are disjoint rectangles.
func extractRegions(mask []bool, w, h, minArea int) []Region {
	visited := make([]bool, len(mask))
	var boxes []box

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if !mask[i] || visited[i] {
				continue
			}
			boxes = append(boxes, floodFill(mask, visited, w, h, x, y))
		}
	}

	boxes = mergeOverlapping(boxes)

	frameArea := float64(w * h)
	regions := make([]Region, 0, len(boxes))
	for _, bx := range boxes {
		bw := bx.x1 - bx.x0 + 1
		bh := bx.y1 - bx.y0 + 1
		if bw*bh < minArea {
			continue
		}
		regions = append(regions, Region{
			X:            bx.x0,
			Y:            bx.y0,
			Width:        bw,
			Height:       bh,
			RelativeArea: float64(bw*bh) / frameArea,
		})
	}

	sort.Slice(regions, func(i, j int) bool {
		if regions[i].Y != regions[j].Y {
			return regions[i].Y < regions[j].Y
		}
		return regions[i].X < regions[j].X
	})
	return regions
}

// box is an inclusive pixel bounding box.
type box struct {
	x0, y0, x1, y1 int
}

func (b box) overlaps(o box) bool {
	return b.x0 <= o.x1 && o.x0 <= b.x1 && b.y0 <= o.y1 && o.y0 <= b.y1
}

func (b box) union(o box) box {
	if o.x0 < b.x0 {
		b.x0 = o.x0
	}
	if o.y0 < b.y0 {
		b.y0 = o.y0
	}
	if o.x1 > b.x1 {
		b.x1 = o.x1
	}
	if o.y1 > b.y1 {
		b.y1 = o.y1
	}
	return b
}

// floodFill visits the component containing (x,y) and returns its bounding
// box. Uses an explicit stack: viewport bitmaps can hold components spanning
// hundreds of thousands of pixels, far past safe recursion depth.
func floodFill(mask, visited []bool, w, h, x, y int) box {
	b := box{x, y, x, y}
	stack := [][2]int{{x, y}}
	visited[y*w+x] = true

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		px, py := p[0], p[1]

		if px < b.x0 {
			b.x0 = px
		}
		if px > b.x1 {
			b.x1 = px
		}
		if py < b.y0 {
			b.y0 = py
		}
		if py > b.y1 {
			b.y1 = py
		}

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx, ny := px+dx, py+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := ny*w + nx
				if mask[ni] && !visited[ni] {
					visited[ni] = true
					stack = append(stack, [2]int{nx, ny})
				}
			}
		}
	}
	return b
}

// mergeOverlapping repeatedly unions overlapping bounding boxes until all
// remaining boxes are pairwise disjoint. Component pixel sets never overlap,
// but their bounding boxes can; the output contract is disjoint rectangles.
func mergeOverlapping(boxes []box) []box {
	for {
		merged := false
		for i := 0; i < len(boxes) && !merged; i++ {
			for j := i + 1; j < len(boxes); j++ {
				if boxes[i].overlaps(boxes[j]) {
					boxes[i] = boxes[i].union(boxes[j])
					boxes = append(boxes[:j], boxes[j+1:]...)
					merged = true
					break
				}
			}
		}
		if !merged {
			return boxes
		}
	}
}

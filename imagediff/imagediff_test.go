package imagediff

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func solidImage(t *testing.T, w, h int, c color.Color) *image.RGBA {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func paintBlock(img *image.RGBA, x0, y0, w, h int, c color.Color) {
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			img.Set(x, y, c)
		}
	}
}

func TestDiff_IdenticalImages(t *testing.T) {
	eng := New(Options{})
	a := solidImage(t, 200, 150, color.White)
	b := solidImage(t, 200, 150, color.White)

	res, err := eng.Diff(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if res.Score != 1.0 {
		t.Errorf("score = %v, want exactly 1.0", res.Score)
	}
	if len(res.Regions) != 0 {
		t.Errorf("regions = %v, want none", res.Regions)
	}
	if res.Composite == nil {
		t.Error("composite missing for identical images")
	}
}

func TestDiff_SingleBlockDifference(t *testing.T) {
	eng := New(Options{})
	a := solidImage(t, 300, 300, color.White)
	b := solidImage(t, 300, 300, color.White)
	paintBlock(b, 100, 120, 50, 50, color.Black)

	res, err := eng.Diff(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if res.Score >= 1.0 {
		t.Errorf("score = %v, want < 1.0", res.Score)
	}
	if len(res.Regions) != 1 {
		t.Fatalf("regions = %v, want exactly one", res.Regions)
	}
	r := res.Regions[0]
	if r.X > 100 || r.Y > 120 || r.X+r.Width < 150 || r.Y+r.Height < 170 {
		t.Errorf("region %+v does not contain the 50x50 block at (100,120)", r)
	}
	if r.RelativeArea <= 0 || r.RelativeArea > 1 {
		t.Errorf("relative area %v outside (0,1]", r.RelativeArea)
	}
}

func TestDiff_ScoreSymmetric(t *testing.T) {
	eng := New(Options{})
	a := solidImage(t, 120, 120, color.RGBA{200, 200, 200, 255})
	b := solidImage(t, 120, 120, color.RGBA{200, 200, 200, 255})
	paintBlock(b, 10, 10, 40, 40, color.RGBA{20, 20, 20, 255})

	ab, err := eng.Diff(a, b)
	if err != nil {
		t.Fatal(err)
	}
	ba, err := eng.Diff(b, a)
	if err != nil {
		t.Fatal(err)
	}
	if ab.Score != ba.Score {
		t.Errorf("diff(a,b).Score = %v, diff(b,a).Score = %v", ab.Score, ba.Score)
	}
}

func TestDiff_DimensionMismatch(t *testing.T) {
	eng := New(Options{})
	a := solidImage(t, 100, 100, color.White)
	b := solidImage(t, 100, 101, color.White)

	_, err := eng.Diff(a, b)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestDiff_NoiseSuppression(t *testing.T) {
	// A 5x5 blob has a 25px² bounding box — below the default 100px²
	// minimum, so it must be discarded as rendering noise.
	eng := New(Options{})
	a := solidImage(t, 200, 200, color.White)
	b := solidImage(t, 200, 200, color.White)
	paintBlock(b, 50, 50, 5, 5, color.Black)

	res, err := eng.Diff(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Regions) != 0 {
		t.Errorf("regions = %v, want noise suppressed", res.Regions)
	}
	if res.Score >= 1.0 {
		t.Errorf("score = %v, want < 1.0 despite suppressed regions", res.Score)
	}
}

func TestDiff_TwoSeparateBlocks(t *testing.T) {
	eng := New(Options{})
	a := solidImage(t, 400, 400, color.White)
	b := solidImage(t, 400, 400, color.White)
	paintBlock(b, 20, 20, 30, 30, color.Black)
	paintBlock(b, 300, 300, 40, 40, color.Black)

	res, err := eng.Diff(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Regions) != 2 {
		t.Fatalf("regions = %v, want two", res.Regions)
	}
	// Stable detection order: top-to-bottom.
	if res.Regions[0].Y > res.Regions[1].Y {
		t.Errorf("regions out of scan order: %v", res.Regions)
	}
}

func TestDiff_BelowThresholdIgnored(t *testing.T) {
	// Intensity delta of ~8 is under the default threshold of 30.
	eng := New(Options{})
	a := solidImage(t, 100, 100, color.RGBA{100, 100, 100, 255})
	b := solidImage(t, 100, 100, color.RGBA{108, 108, 108, 255})

	res, err := eng.Diff(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Regions) != 0 {
		t.Errorf("regions = %v, want none for sub-threshold delta", res.Regions)
	}
}

func TestComposite_OutlinesDrawn(t *testing.T) {
	eng := New(Options{})
	a := solidImage(t, 200, 200, color.White)
	b := solidImage(t, 200, 200, color.White)
	paintBlock(b, 80, 80, 50, 50, color.Black)

	res, err := eng.Diff(a, b)
	if err != nil {
		t.Fatal(err)
	}
	r := res.Regions[0]
	c := res.Composite.At(r.X, r.Y)
	cr, cg, cb, _ := c.RGBA()
	if !(cr>>8 == uint32(outlineColor.R) && cg>>8 == uint32(outlineColor.G) && cb>>8 == uint32(outlineColor.B)) {
		t.Errorf("composite corner pixel %v, want outline color", c)
	}
}

func TestMergeOverlapping(t *testing.T) {
	boxes := mergeOverlapping([]box{
		{0, 0, 10, 10},
		{5, 5, 20, 20},
		{100, 100, 110, 110},
	})
	if len(boxes) != 2 {
		t.Fatalf("boxes = %v, want 2 after merge", boxes)
	}
	for i := range boxes {
		for j := i + 1; j < len(boxes); j++ {
			if boxes[i].overlaps(boxes[j]) {
				t.Errorf("boxes %v and %v still overlap", boxes[i], boxes[j])
			}
		}
	}
}

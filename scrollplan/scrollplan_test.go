package scrollplan

import (
	"testing"
)

func TestPlan_FullViewportSteps(t *testing.T) {
	got := Plan(2000, 2000, 600)
	want := []int{0, 600, 1200, 1800}
	assertPlan(t, got, want)
}

func TestPlan_ShortPageSingleFrame(t *testing.T) {
	got := Plan(500, 500, 600)
	assertPlan(t, got, []int{0})
}

func TestPlan_PartialTrailingFrameKept(t *testing.T) {
	// ceil(1270/600) = 3 and (3-1)*600 = 1200 < 1270, so the partial third
	// frame stays in the plan.
	got := Plan(1270, 1270, 600)
	assertPlan(t, got, []int{0, 600, 1200})
}

func TestPlan_TallerPageWins(t *testing.T) {
	got := Plan(900, 2000, 600)
	assertPlan(t, got, []int{0, 600, 1200, 1800})

	// Order of heights must not matter.
	assertPlan(t, Plan(2000, 900, 600), []int{0, 600, 1200, 1800})
}

func TestPlan_ExactMultiple(t *testing.T) {
	got := Plan(1200, 1200, 600)
	assertPlan(t, got, []int{0, 600})
}

func TestPlan_Invariants(t *testing.T) {
	cases := []struct{ a, b, vh int }{
		{100, 100, 1},
		{599, 601, 600},
		{600, 600, 600},
		{601, 600, 600},
		{1, 1, 600},
		{5000, 4999, 733},
		{1080, 1080, 540},
		{10000, 3, 601},
	}
	for _, c := range cases {
		plan := Plan(c.a, c.b, c.vh)
		if len(plan) < 1 {
			t.Fatalf("Plan(%d,%d,%d): empty plan", c.a, c.b, c.vh)
		}
		if plan[0] != 0 {
			t.Errorf("Plan(%d,%d,%d): first offset %d, want 0", c.a, c.b, c.vh, plan[0])
		}
		maxHeight := c.a
		if c.b > maxHeight {
			maxHeight = c.b
		}
		for i := 1; i < len(plan); i++ {
			if plan[i] <= plan[i-1] {
				t.Errorf("Plan(%d,%d,%d): offsets not strictly increasing: %v", c.a, c.b, c.vh, plan)
			}
		}
		if last := plan[len(plan)-1]; len(plan) > 1 && last >= maxHeight {
			t.Errorf("Plan(%d,%d,%d): last offset %d >= max height %d", c.a, c.b, c.vh, last, maxHeight)
		}
	}
}

func TestGeometry_Validate(t *testing.T) {
	ok := Geometry{ContentHeight: 2000, ViewportWidth: 1280, ViewportHeight: 600}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid geometry rejected: %v", err)
	}

	bad := []Geometry{
		{ContentHeight: 2000, ViewportWidth: 1280, ViewportHeight: 0},
		{ContentHeight: 2000, ViewportWidth: 0, ViewportHeight: 600},
		{ContentHeight: 100, ViewportWidth: 1280, ViewportHeight: 600},
	}
	for _, g := range bad {
		if err := g.Validate(); err == nil {
			t.Errorf("geometry %+v passed validation, want error", g)
		}
	}
}

func assertPlan(t *testing.T, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("plan %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("plan %v, want %v", got, want)
		}
	}
}

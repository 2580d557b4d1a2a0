package kinds

import (
	"testing"

	"github.com/meshnode/meshnode/internal/animation"
)

func TestSolidFillsEveryPixelWithItsColor(t *testing.T) {
	s := NewSolid()
	pixels := make([]animation.RGB, 5)
	s.Render(0, pixels)
	for i, px := range pixels {
		if px != (animation.RGB{R: 255, G: 255, B: 255}) {
			t.Errorf("pixel %d: got %+v", i, px)
		}
	}
}

func TestSolidColorParamIsSettableAndResettable(t *testing.T) {
	s := NewSolid()
	cells := s.Parameters()
	if len(cells) != 1 || cells[0].Name != "color" {
		t.Fatalf("expected a single color param, got %+v", cells)
	}
	if err := cells[0].UnmarshalJSON([]byte(`{"R":1,"G":2,"B":3}`)); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if s.color != (animation.RGB{R: 1, G: 2, B: 3}) {
		t.Fatalf("expected color applied, got %+v", s.color)
	}
	cells[0].Reset()
	if s.color != (animation.RGB{R: 255, G: 255, B: 255}) {
		t.Errorf("expected Reset to restore the default, got %+v", s.color)
	}
}

func TestBreathingPeaksAtQuarterCycle(t *testing.T) {
	b := NewBreathing()
	b.color = animation.RGB{R: 200, G: 0, B: 0}
	b.periodS = 1 // 100 epochs per full cycle

	pixels := make([]animation.RGB, 1)
	b.Render(25, pixels) // quarter cycle: sin(2*pi*0.25) == 1 -> full brightness
	if pixels[0].R < 195 {
		t.Errorf("expected near-peak brightness at quarter cycle, got %+v", pixels[0])
	}

	b.Render(75, pixels) // three-quarter cycle: sin == -1 -> near zero
	if pixels[0].R > 5 {
		t.Errorf("expected near-zero brightness at three-quarter cycle, got %+v", pixels[0])
	}
}

func TestBreathingPhaseShiftsTheWave(t *testing.T) {
	a := NewBreathing()
	a.color = animation.RGB{R: 200}
	a.periodS = 1

	b := NewBreathing()
	b.color = animation.RGB{R: 200}
	b.periodS = 1
	b.SetPhase(0.25)

	pixelsA := make([]animation.RGB, 1)
	pixelsB := make([]animation.RGB, 1)
	a.Render(0, pixelsA)
	b.Render(0, pixelsB)
	if pixelsA[0] == pixelsB[0] {
		t.Error("expected a quarter-cycle phase shift to change the rendered brightness")
	}
}

func TestAllKindsReportDistinctTypeNames(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range []animation.Animation{
		NewSolid(), NewBreathing(), NewFire(), NewAurora(), NewBouncingBall(),
	} {
		name := a.TypeName()
		if seen[name] {
			t.Errorf("duplicate TypeName %q", name)
		}
		seen[name] = true
		if len(a.Parameters()) == 0 {
			t.Errorf("%s registered no parameters", name)
		}
	}
}

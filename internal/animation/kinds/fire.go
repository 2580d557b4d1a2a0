package kinds

import (
	"math/rand"

	"github.com/meshnode/meshnode/internal/animation"
)

// Fire is a classic heat-diffusion flame simulation: a heat buffer cools
// every frame, sparks occasionally, and diffuses upward through a
// palette lookup.
type Fire struct {
	phase    float64
	cooling  float32
	sparking float32
	palette  animation.Palette
	heat     []uint8
	rng      *rand.Rand
	cells    []*animation.ParamCell
}

func NewFire() *Fire {
	f := &Fire{
		cooling:  55,
		sparking: 120,
		palette: animation.Palette{Stops: []animation.RGB{
			{R: 0, G: 0, B: 0},
			{R: 128, G: 0, B: 0},
			{R: 255, G: 80, B: 0},
			{R: 255, G: 200, B: 60},
			{R: 255, G: 255, B: 220},
		}},
		rng: rand.New(rand.NewSource(1)),
	}
	f.cells = []*animation.ParamCell{
		animation.F32Param("cooling", &f.cooling, 0, 255, 1, "how fast heat dissipates"),
		animation.F32Param("sparking", &f.sparking, 0, 255, 1, "chance of a new spark each frame"),
		animation.PaletteParam("palette", &f.palette, "heat-to-color gradient"),
	}
	return f
}

func (f *Fire) TypeName() string { return "Fire" }

func (f *Fire) Parameters() []*animation.ParamCell { return f.cells }

func (f *Fire) SetPhase(phase float64) { f.phase = phase }

func (f *Fire) Render(epoch uint32, pixels []animation.RGB) {
	n := len(pixels)
	if len(f.heat) != n {
		f.heat = make([]uint8, n)
	}

	for i := 0; i < n; i++ {
		cooldown := uint8(f.rng.Intn(int(f.cooling)*2/n + 2))
		if f.heat[i] > cooldown {
			f.heat[i] -= cooldown
		} else {
			f.heat[i] = 0
		}
	}

	for i := n - 1; i >= 2; i-- {
		f.heat[i] = (uint16Add(f.heat[i-1], f.heat[i-1], f.heat[i-2]) / 3)
	}

	if float32(f.rng.Intn(255)) < f.sparking {
		y := f.rng.Intn(min(7, n))
		f.heat[y] = addClamp(f.heat[y], uint8(160+f.rng.Intn(95)))
	}

	for i := 0; i < n; i++ {
		pixels[i] = paletteLookup(f.palette, f.heat[i])
	}
}

func uint16Add(a, b, c uint8) uint8 {
	sum := int(a) + int(b) + int(c)
	if sum > 255 {
		return 255
	}
	return uint8(sum)
}

func addClamp(a, b uint8) uint8 {
	sum := int(a) + int(b)
	if sum > 255 {
		return 255
	}
	return uint8(sum)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func paletteLookup(p animation.Palette, heat uint8) animation.RGB {
	if len(p.Stops) == 0 {
		return animation.RGB{}
	}
	if len(p.Stops) == 1 {
		return p.Stops[0]
	}
	pos := float64(heat) / 255 * float64(len(p.Stops)-1)
	lo := int(pos)
	if lo >= len(p.Stops)-1 {
		return p.Stops[len(p.Stops)-1]
	}
	frac := pos - float64(lo)
	a, b := p.Stops[lo], p.Stops[lo+1]
	return animation.RGB{
		R: lerp(a.R, b.R, frac),
		G: lerp(a.G, b.G, frac),
		B: lerp(a.B, b.B, frac),
	}
}

func lerp(a, b uint8, frac float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*frac)
}

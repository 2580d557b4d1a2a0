package kinds

import (
	"math"

	"github.com/meshnode/meshnode/internal/animation"
)

// Breathing fades the whole strip's brightness up and down in a sine
// wave, phase-shiftable per device via SetPhase.
type Breathing struct {
	phase   float64
	color   animation.RGB
	periodS float32
	cells   []*animation.ParamCell
}

func NewBreathing() *Breathing {
	b := &Breathing{color: animation.RGB{R: 0, G: 120, B: 255}, periodS: 4}
	b.cells = []*animation.ParamCell{
		animation.ColorParam("color", &b.color, "breath color"),
		animation.F32Param("period_s", &b.periodS, 0.5, 30, 0.1, "seconds per full breath cycle"),
	}
	return b
}

func (b *Breathing) TypeName() string { return "Breathing" }

func (b *Breathing) Parameters() []*animation.ParamCell { return b.cells }

func (b *Breathing) SetPhase(phase float64) { b.phase = phase }

func (b *Breathing) Render(epoch uint32, pixels []animation.RGB) {
	periodEpochs := float64(b.periodS) * 100 // 100 epochs/sec (10ms epoch)
	if periodEpochs <= 0 {
		periodEpochs = 1
	}
	t := math.Mod(float64(epoch)/periodEpochs+b.phase, 1)
	level := 0.5 + 0.5*math.Sin(2*math.Pi*t)
	c := animation.RGB{
		R: scale(b.color.R, level),
		G: scale(b.color.G, level),
		B: scale(b.color.B, level),
	}
	for i := range pixels {
		pixels[i] = c
	}
}

func scale(v uint8, level float64) uint8 {
	out := float64(v) * level
	if out < 0 {
		return 0
	}
	if out > 255 {
		return 255
	}
	return uint8(out)
}

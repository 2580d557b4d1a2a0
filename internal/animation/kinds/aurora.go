package kinds

import (
	"math"

	"github.com/meshnode/meshnode/internal/animation"
)

// Aurora sweeps a palette along the strip using overlapping sine waves,
// phase-shiftable per device.
type Aurora struct {
	phase   float64
	speed   float32
	palette animation.Palette
	cells   []*animation.ParamCell
}

func NewAurora() *Aurora {
	a := &Aurora{
		speed: 0.5,
		palette: animation.Palette{Stops: []animation.RGB{
			{R: 10, G: 200, B: 120},
			{R: 30, G: 80, B: 220},
			{R: 150, G: 50, B: 220},
		}},
	}
	a.cells = []*animation.ParamCell{
		animation.F32Param("speed", &a.speed, 0, 5, 0.05, "sweep speed"),
		animation.PaletteParam("palette", &a.palette, "aurora color stops"),
	}
	return a
}

func (a *Aurora) TypeName() string { return "Aurora" }

func (a *Aurora) Parameters() []*animation.ParamCell { return a.cells }

func (a *Aurora) SetPhase(phase float64) { a.phase = phase }

func (a *Aurora) Render(epoch uint32, pixels []animation.RGB) {
	n := len(pixels)
	if n == 0 {
		return
	}
	t := float64(epoch)/100*float64(a.speed) + a.phase
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n)
		wave := 0.5 + 0.5*math.Sin(2*math.Pi*(x*2+t))
		pixels[i] = paletteLookup(a.palette, uint8(wave*255))
	}
}

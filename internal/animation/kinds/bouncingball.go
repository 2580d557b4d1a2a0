package kinds

import (
	"math"

	"github.com/meshnode/meshnode/internal/animation"
)

// BouncingBall simulates ballCount balls dropping and bouncing along the
// strip under gravity, each phase-offset so they don't all bounce in
// lockstep.
type BouncingBall struct {
	phase     float64
	ballCount int32
	color     animation.RGB
	gravity   float32
	cells     []*animation.ParamCell
}

func NewBouncingBall() *BouncingBall {
	b := &BouncingBall{ballCount: 3, color: animation.RGB{R: 255, G: 255, B: 255}, gravity: 9.8}
	b.cells = []*animation.ParamCell{
		animation.I32Param("ball_count", &b.ballCount, 1, 16, 1, "number of simultaneous balls"),
		animation.ColorParam("color", &b.color, "ball color"),
		animation.F32Param("gravity", &b.gravity, 1, 40, 0.5, "fall acceleration"),
	}
	return b
}

func (b *BouncingBall) TypeName() string { return "BouncingBall" }

func (b *BouncingBall) Parameters() []*animation.ParamCell { return b.cells }

func (b *BouncingBall) SetPhase(phase float64) { b.phase = phase }

func (b *BouncingBall) Render(epoch uint32, pixels []animation.RGB) {
	n := len(pixels)
	if n == 0 || b.ballCount <= 0 {
		return
	}
	for i := range pixels {
		pixels[i] = animation.RGB{}
	}
	t := float64(epoch) / 100
	g := float64(b.gravity)
	for k := int32(0); k < b.ballCount; k++ {
		offset := b.phase + float64(k)/float64(b.ballCount)
		// height(t) follows a periodically-reflected parabola so the
		// ball appears to bounce with a period derived from gravity.
		period := 2 * math.Sqrt(2*float64(n)/g)
		localT := math.Mod(t+offset*period, period)
		height := float64(n) - 0.5*g*math.Pow(localT-period/2, 2)
		if height < 0 {
			height = 0
		}
		pos := int(height)
		if pos >= 0 && pos < n {
			pixels[pos] = b.color
		}
	}
}

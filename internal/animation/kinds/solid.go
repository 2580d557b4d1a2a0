// Package kinds holds the node's built-in base animations, one concern
// per file.
package kinds

import (
	"github.com/meshnode/meshnode/internal/animation"
)

// Solid fills the whole strip with a single color.
type Solid struct {
	phase float64
	color animation.RGB
	cells []*animation.ParamCell
}

func NewSolid() *Solid {
	s := &Solid{color: animation.RGB{R: 255, G: 255, B: 255}}
	s.cells = []*animation.ParamCell{
		animation.ColorParam("color", &s.color, "fill color"),
	}
	return s
}

func (s *Solid) TypeName() string { return "Solid" }

func (s *Solid) Parameters() []*animation.ParamCell { return s.cells }

func (s *Solid) SetPhase(phase float64) { s.phase = phase }

func (s *Solid) Render(epoch uint32, pixels []animation.RGB) {
	for i := range pixels {
		pixels[i] = s.color
	}
}

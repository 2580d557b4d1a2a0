// Package animation implements the Animation abstraction and parameter
// registry: a capability interface implemented once per animation kind,
// and a ParamCell sum type standing in for a tagged union of typed
// parameter values.
package animation

import (
	"encoding/json"
	"fmt"
)

// RGB is an 8-bit-per-channel pixel, matching pixel driver
// representation.
type RGB struct {
	R, G, B uint8
}

// Palette is the DynamicPalette parameter kind: an ordered list of stops
// an animation interpolates between at render time.
type Palette struct {
	Stops []RGB
}

func clonePalette(p Palette) Palette {
	stops := make([]RGB, len(p.Stops))
	copy(stops, p.Stops)
	return Palette{Stops: stops}
}

// Kind tags a ParamCell's underlying storage type.
type Kind int

const (
	KindI32 Kind = iota
	KindF32
	KindU8
	KindBool
	KindColor
	KindPalette
)

// ParamCell is a named, bounded, typed handle onto a field owned by the
// animation instance that registered it. Animations register cells
// borrowing from their own fields at construction and never remove them.
type ParamCell struct {
	Name        string
	Kind        Kind
	Min, Max    float64
	Step        float64
	Description string

	i32 *int32
	f32 *float32
	u8  *uint8
	b   *bool
	clr *RGB
	pal *Palette

	defI32 int32
	defF32 float32
	defU8  uint8
	defB   bool
	defClr RGB
	defPal Palette
}

func I32Param(name string, target *int32, min, max, step int32, desc string) *ParamCell {
	return &ParamCell{Name: name, Kind: KindI32, Min: float64(min), Max: float64(max), Step: float64(step), Description: desc, i32: target, defI32: *target}
}

func F32Param(name string, target *float32, min, max, step float32, desc string) *ParamCell {
	return &ParamCell{Name: name, Kind: KindF32, Min: float64(min), Max: float64(max), Step: float64(step), Description: desc, f32: target, defF32: *target}
}

func U8Param(name string, target *uint8, min, max, step uint8, desc string) *ParamCell {
	return &ParamCell{Name: name, Kind: KindU8, Min: float64(min), Max: float64(max), Step: float64(step), Description: desc, u8: target, defU8: *target}
}

func BoolParam(name string, target *bool, desc string) *ParamCell {
	return &ParamCell{Name: name, Kind: KindBool, Description: desc, b: target, defB: *target}
}

func ColorParam(name string, target *RGB, desc string) *ParamCell {
	return &ParamCell{Name: name, Kind: KindColor, Description: desc, clr: target, defClr: *target}
}

func PaletteParam(name string, target *Palette, desc string) *ParamCell {
	return &ParamCell{Name: name, Kind: KindPalette, Description: desc, pal: target, defPal: clonePalette(*target)}
}

// Reset writes the cell's registered default back into its target.
func (c *ParamCell) Reset() {
	switch c.Kind {
	case KindI32:
		*c.i32 = c.defI32
	case KindF32:
		*c.f32 = c.defF32
	case KindU8:
		*c.u8 = c.defU8
	case KindBool:
		*c.b = c.defB
	case KindColor:
		*c.clr = c.defClr
	case KindPalette:
		*c.pal = clonePalette(c.defPal)
	}
}

// MarshalJSON encodes the cell's current value.
func (c *ParamCell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case KindI32:
		return json.Marshal(*c.i32)
	case KindF32:
		return json.Marshal(*c.f32)
	case KindU8:
		return json.Marshal(*c.u8)
	case KindBool:
		return json.Marshal(*c.b)
	case KindColor:
		return json.Marshal(*c.clr)
	case KindPalette:
		return json.Marshal(*c.pal)
	default:
		return nil, fmt.Errorf("animation: unknown param kind %d", c.Kind)
	}
}

// ErrIncompatibleType is returned (never panics, never propagated onto
// the wire) when a SyncParam JSON value doesn't match the cell's kind.
var ErrIncompatibleType = fmt.Errorf("animation: value incompatible with parameter kind")

// UnmarshalJSON applies raw to the cell's target, returning
// ErrIncompatibleType on any type mismatch rather than partially
// applying a bad value.
func (c *ParamCell) UnmarshalJSON(raw []byte) error {
	switch c.Kind {
	case KindI32:
		var v int32
		if err := json.Unmarshal(raw, &v); err != nil {
			return ErrIncompatibleType
		}
		*c.i32 = v
	case KindF32:
		var v float32
		if err := json.Unmarshal(raw, &v); err != nil {
			return ErrIncompatibleType
		}
		*c.f32 = v
	case KindU8:
		var v uint8
		if err := json.Unmarshal(raw, &v); err != nil {
			return ErrIncompatibleType
		}
		*c.u8 = v
	case KindBool:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return ErrIncompatibleType
		}
		*c.b = v
	case KindColor:
		var v RGB
		if err := json.Unmarshal(raw, &v); err != nil {
			return ErrIncompatibleType
		}
		*c.clr = v
	case KindPalette:
		var v Palette
		if err := json.Unmarshal(raw, &v); err != nil {
			return ErrIncompatibleType
		}
		*c.pal = v
	default:
		return ErrIncompatibleType
	}
	return nil
}

// Animation is the capability interface every concrete animation kind
// implements once.
type Animation interface {
	TypeName() string
	Parameters() []*ParamCell
	SetPhase(phase float64)
	Render(epoch uint32, pixels []RGB)
}

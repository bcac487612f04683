// Package colormap maps normalized expression values to colors for the
// preview renderer.
package colormap

import "image/color"

// Linear interpolates between a fixed sequence of anchor colors.
type Linear struct {
	anchors []color.RGBA
}

// At returns the color for a value in [0, 1]. Values outside the range clamp
// to the endpoint colors.
func (c Linear) At(t float64) color.Color {
	if t <= 0 {
		return c.anchors[0]
	}
	if t >= 1 {
		return c.anchors[len(c.anchors)-1]
	}

	pos := t * float64(len(c.anchors)-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= len(c.anchors) {
		hi = len(c.anchors) - 1
	}
	return lerp(c.anchors[lo], c.anchors[hi], pos-float64(lo))
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(a.R) + t*(float64(b.R)-float64(a.R))),
		G: uint8(float64(a.G) + t*(float64(b.G)-float64(a.G))),
		B: uint8(float64(a.B) + t*(float64(b.B)-float64(a.B))),
		A: 255,
	}
}

// Viridis is the matplotlib viridis scale, the default for expression values.
var Viridis = Linear{
	anchors: []color.RGBA{
		{68, 1, 84, 255},
		{72, 35, 116, 255},
		{64, 67, 135, 255},
		{52, 94, 141, 255},
		{41, 120, 142, 255},
		{32, 144, 140, 255},
		{34, 167, 132, 255},
		{68, 190, 112, 255},
		{121, 209, 81, 255},
		{189, 222, 38, 255},
		{253, 231, 37, 255},
	},
}

// Magma is an alternative sequential scale.
var Magma = Linear{
	anchors: []color.RGBA{
		{0, 0, 4, 255},
		{28, 16, 68, 255},
		{79, 18, 123, 255},
		{129, 37, 129, 255},
		{181, 54, 122, 255},
		{229, 80, 100, 255},
		{251, 135, 97, 255},
		{254, 194, 135, 255},
		{252, 253, 191, 255},
	},
}

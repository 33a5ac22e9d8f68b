package term

import "image/color"

// IndexedColor defers a palette lookup to render time: the cell stores the
// 0-255 index, not the resolved RGBA, so OSC 4 palette changes apply to
// already-written cells.
type IndexedColor struct {
	Index int
}

// RGBA implements color.Color with a placeholder; real resolution goes
// through resolveDefaultColor against DefaultPalette.
func (c *IndexedColor) RGBA() (r, g, b, a uint32) {
	return 0, 0, 0, 0xffff
}

// NamedColor defers a semantic color (default foreground, background,
// cursor, dim variants) to render time, so OSC 10/11/12 changes apply
// retroactively the way palette changes do.
type NamedColor struct {
	Name int
}

// RGBA implements color.Color with a placeholder; real resolution goes
// through resolveNamedColor.
func (c *NamedColor) RGBA() (r, g, b, a uint32) {
	return 0, 0, 0, 0xffff
}

// Semantic color names carried by NamedColor, continuing past the 256
// palette indices.
const (
	NamedColorForeground       = 256
	NamedColorBackground       = 257
	NamedColorCursor           = 258
	NamedColorDimBlack         = 259
	NamedColorDimRed           = 260
	NamedColorDimGreen         = 261
	NamedColorDimYellow        = 262
	NamedColorDimBlue          = 263
	NamedColorDimMagenta       = 264
	NamedColorDimCyan          = 265
	NamedColorDimWhite         = 266
	NamedColorBrightForeground = 267
	NamedColorDimForeground    = 268
)

// ansiBase is the standard + bright half of the palette. The values match
// the common VS Code/xterm defaults most emulators ship.
var ansiBase = [16]color.RGBA{
	{0, 0, 0, 255},
	{205, 49, 49, 255},
	{13, 188, 121, 255},
	{229, 229, 16, 255},
	{36, 114, 200, 255},
	{188, 63, 188, 255},
	{17, 168, 205, 255},
	{229, 229, 229, 255},
	{102, 102, 102, 255},
	{241, 76, 76, 255},
	{35, 209, 139, 255},
	{245, 245, 67, 255},
	{59, 142, 234, 255},
	{214, 112, 214, 255},
	{41, 184, 219, 255},
	{255, 255, 255, 255},
}

// DefaultPalette is the full 256-color table: 16 ANSI colors, the 6x6x6
// color cube (16-231), and the 24-step grayscale ramp (232-255).
var DefaultPalette = buildPalette()

func buildPalette() [256]color.RGBA {
	var p [256]color.RGBA
	copy(p[:16], ansiBase[:])

	i := 16
	for r := 0; r < 6; r++ {
		for g := 0; g < 6; g++ {
			for b := 0; b < 6; b++ {
				p[i] = color.RGBA{uint8(r * 51), uint8(g * 51), uint8(b * 51), 255}
				i++
			}
		}
	}

	for j := 0; j < 24; j++ {
		v := uint8(8 + j*10)
		p[232+j] = color.RGBA{v, v, v, 255}
	}
	return p
}

// DefaultForeground is the default text color.
var DefaultForeground = color.RGBA{229, 229, 229, 255}

// DefaultBackground is the default screen background.
var DefaultBackground = color.RGBA{0, 0, 0, 255}

// DefaultCursorColor is the default cursor fill.
var DefaultCursorColor = color.RGBA{229, 229, 229, 255}

// resolveDefaultColor flattens any cell color to RGBA against the default
// palette. nil resolves to the default foreground or background depending
// on fg.
func resolveDefaultColor(c color.Color, fg bool) color.RGBA {
	switch v := c.(type) {
	case nil:
		return defaultFor(fg)
	case color.RGBA:
		return v
	case *IndexedColor:
		if v.Index >= 0 && v.Index < 256 {
			return DefaultPalette[v.Index]
		}
		return defaultFor(fg)
	case *NamedColor:
		return resolveNamedColor(v.Name, fg)
	default:
		r, g, b, a := c.RGBA()
		return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
	}
}

func defaultFor(fg bool) color.RGBA {
	if fg {
		return DefaultForeground
	}
	return DefaultBackground
}

// resolveNamedColor maps a semantic name to RGBA. Dim variants scale their
// base color to roughly two thirds brightness, matching xterm's faint
// rendering.
func resolveNamedColor(name int, fg bool) color.RGBA {
	switch {
	case name >= 0 && name < 16:
		return DefaultPalette[name]
	case name == NamedColorForeground:
		return DefaultForeground
	case name == NamedColorBackground:
		return DefaultBackground
	case name == NamedColorCursor:
		return DefaultCursorColor
	case name >= NamedColorDimBlack && name <= NamedColorDimWhite:
		return dim(DefaultPalette[name-NamedColorDimBlack])
	case name == NamedColorBrightForeground:
		return DefaultPalette[15]
	case name == NamedColorDimForeground:
		return dim(DefaultForeground)
	default:
		return defaultFor(fg)
	}
}

func dim(c color.RGBA) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * 0.66),
		G: uint8(float64(c.G) * 0.66),
		B: uint8(float64(c.B) * 0.66),
		A: 255,
	}
}

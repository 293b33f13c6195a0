package display

import (
	"image"

	"github.com/embeddedgo/display/font/subfont"
	"golang.org/x/image/font/basicfont"
)

// Metrics of basicfont.Face7x13.
const (
	glyphAdvance = 7
	glyphHeight  = 13
	glyphAscent  = 11
)

// glyphs serves one range of a basicfont.Face as subfont data. The mask
// stacks all glyphs vertically, each one a full line high.
type glyphs struct {
	face   *basicfont.Face
	offset int
}

func (g glyphs) Advance(i int) int {
	return g.face.Advance
}

func (g glyphs) Glyph(i int) (img image.Image, origin image.Point, advance int) {
	y := (g.offset + i) * g.face.Height
	r := image.Rect(0, y, g.face.Width, y+g.face.Height)
	img = g.face.Mask.(interface {
		SubImage(image.Rectangle) image.Image
	}).SubImage(r)
	origin = image.Pt(g.face.Left, y+g.face.Ascent)
	advance = g.face.Advance
	return
}

func newFace(f *basicfont.Face) *subfont.Face {
	face := &subfont.Face{Height: glyphHeight, Ascent: glyphAscent}
	for _, rg := range f.Ranges {
		face.Subfonts = append(face.Subfonts, &subfont.Subfont{
			First: rg.Low,
			Last:  rg.High - 1,
			Data:  glyphs{f, rg.Offset},
		})
	}
	return face
}

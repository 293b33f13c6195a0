package display

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/embeddedgo/display/pix"
	"golang.org/x/image/font/basicfont"
)

// OLED renders into a monochrome framebuffer and sends it to the panel in its
// native format on Present.
type OLED struct {
	// Flip rotates the picture by 180 degrees.
	Flip bool

	typ  Type
	fb   *image.Gray
	fill image.Uniform
	send func([]byte) error
	buf  []byte

	tw *pix.TextWriter
}

// NewOLED returns an OLED for a panel of type t. Present passes the encoded
// frame to send.
func NewOLED(t Type, send func([]byte) error) *OLED {
	o := &OLED{
		typ:  t,
		fb:   image.NewGray(image.Rectangle{Max: t.Size()}),
		send: send,
	}
	o.fill.C = color.Black
	disp := pix.NewDisplay(o)
	a := disp.NewArea(disp.Bounds())
	o.tw = a.NewTextWriter(newFace(basicfont.Face7x13))
	o.tw.SetColor(color.White)
	return o
}

func (o *OLED) Type() Type {
	return o.typ
}

func (o *OLED) Clear() {
	clear(o.fb.Pix)
}

func (o *OLED) DrawText(s string, x, y int) {
	o.tw.Pos = image.Pt(x*glyphAdvance, y*glyphHeight)
	o.tw.WriteString(s)
}

// Present encodes the framebuffer. The SSD1306 and SSD1309 take pages of 8
// rows with one byte per column, the SSD1331 takes RGB565 pixels row by row.
func (o *OLED) Present() error {
	size := o.typ.Size()
	on := func(x, y int) bool {
		if o.Flip {
			x, y = size.X-1-x, size.Y-1-y
		}
		return o.fb.GrayAt(x, y).Y >= 0x80
	}

	if o.typ == SSD1331 {
		o.buf = o.buf[:0]
		for y := range size.Y {
			for x := range size.X {
				var px uint16
				if on(x, y) {
					px = 0xffff
				}
				o.buf = append(o.buf, byte(px>>8), byte(px))
			}
		}
		return o.send(o.buf)
	}

	n := size.X * size.Y / 8
	if cap(o.buf) < n {
		o.buf = make([]byte, n)
	}
	o.buf = o.buf[:n]
	clear(o.buf)
	for y := range size.Y {
		for x := range size.X {
			if on(x, y) {
				o.buf[y/8*size.X+x] |= 1 << (y % 8)
			}
		}
	}
	return o.send(o.buf)
}

// The remaining methods implement pix.Driver.

func (o *OLED) Draw(r image.Rectangle, src image.Image, sp image.Point,
	mask image.Image, mp image.Point, op draw.Op) {
	draw.DrawMask(o.fb, r, src, sp, mask, mp, op)
}

func (o *OLED) Fill(r image.Rectangle) {
	o.Draw(r, &o.fill, image.Point{}, nil, image.Point{}, draw.Over)
}

func (o *OLED) SetColor(c color.Color) {
	o.fill.C = c
}

func (o *OLED) SetDir(dir int) image.Rectangle {
	return o.fb.Bounds()
}

func (o *OLED) Flush() {}

func (o *OLED) Err(clear bool) error {
	return nil
}

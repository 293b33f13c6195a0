// Package display shows status messages on the controller's OLED. Text
// positions are given in character cells of the built-in font.
package display

import (
	"fmt"
	"image"
	"io"
	"strings"
)

// Status is a small text display.
type Status interface {
	Clear()
	DrawText(s string, x, y int)
	Present() error
}

// Type selects the panel controller.
type Type uint8

const (
	SSD1306 Type = iota
	SSD1331
	SSD1309
)

func (t Type) String() string {
	switch t {
	case SSD1306:
		return "SSD1306"
	case SSD1331:
		return "SSD1331"
	case SSD1309:
		return "SSD1309"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Size returns the resolution of the panel.
func (t Type) Size() image.Point {
	if t == SSD1331 {
		return image.Pt(96, 64)
	}
	return image.Pt(128, 64)
}

// Text is a Status for terminals. Present writes the visible lines to W.
type Text struct {
	W          io.Writer
	Cols, Rows int

	lines [][]rune
}

func NewText(w io.Writer, t Type) *Text {
	size := t.Size()
	return &Text{W: w, Cols: size.X / glyphAdvance, Rows: size.Y / glyphHeight}
}

func (p *Text) Clear() {
	p.lines = p.lines[:0]
}

func (p *Text) DrawText(s string, x, y int) {
	if y < 0 || y >= p.Rows || x < 0 || x >= p.Cols {
		return
	}
	for len(p.lines) <= y {
		p.lines = append(p.lines, nil)
	}
	line := p.lines[y]
	for len(line) < x {
		line = append(line, ' ')
	}
	for i, r := range []rune(s) {
		if x+i >= p.Cols {
			break
		}
		if x+i < len(line) {
			line[x+i] = r
		} else {
			line = append(line, r)
		}
	}
	p.lines[y] = line
}

// String returns the current content, one line per row.
func (p *Text) String() string {
	var sb strings.Builder
	for _, l := range p.lines {
		sb.WriteString(strings.TrimRight(string(l), " "))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (p *Text) Present() error {
	_, err := io.WriteString(p.W, p.String())
	return err
}

// Package compose turns a plot (or camera frame) and status text into one
// frame sized to the target display: plot on the left two thirds, a vertical
// divider, and word-wrapped info lines on the right.
package compose

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	// wrapMargin is kept free at the right edge of the info region when
	// measuring lines.
	wrapMargin = 10
	textLeft   = 4
	textTop    = 14
)

type Compositor struct {
	w, h  int
	face  font.Face
	pitch int
}

// New builds a compositor for a w-by-h display. A nil face selects the
// built-in 7x13 face.
func New(w, h int, face font.Face) *Compositor {
	if face == nil {
		face = basicfont.Face7x13
	}
	return &Compositor{
		w:     w,
		h:     h,
		face:  face,
		pitch: face.Metrics().Height.Ceil() + 2,
	}
}

// Size returns the output frame dimensions.
func (c *Compositor) Size() (w, h int) { return c.w, c.h }

// Compose renders one frame. plot may be nil, leaving the left region blank.
// The output depends only on the arguments, so composing the same inputs
// twice yields identical pixels.
func (c *Compositor) Compose(plot image.Image, info []string) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, c.w, c.h))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)

	pw := c.w * 2 / 3
	if plot != nil {
		resized := imaging.Resize(plot, pw, c.h, imaging.Linear)
		draw.Draw(out, image.Rect(0, 0, pw, c.h), resized, image.Point{}, draw.Src)
	}
	for y := 0; y < c.h; y++ {
		out.Set(pw, y, color.Black)
	}

	d := &font.Drawer{Dst: out, Src: image.Black, Face: c.face}
	y := textTop
	for _, ln := range c.wrap(info, c.w-pw) {
		if y > c.h {
			// overflow lines are clipped, not re-flowed
			break
		}
		d.Dot = fixed.P(pw+1+textLeft, y)
		d.DrawString(ln)
		y += c.pitch
	}
	return out
}

// wrap re-flows each info line to the region width. A word that would push
// the rendered width past (infoW - wrapMargin) closes the current line; a
// single word wider than the budget still gets a line of its own.
func (c *Compositor) wrap(info []string, infoW int) []string {
	budget := fixed.I(infoW - wrapMargin)
	var out []string
	for _, line := range info {
		words := strings.Fields(line)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		cur := words[0]
		for _, w := range words[1:] {
			cand := cur + " " + w
			if font.MeasureString(c.face, cand) > budget {
				out = append(out, cur)
				cur = w
				continue
			}
			cur = cand
		}
		out = append(out, cur)
	}
	return out
}

// Package epd adapts a Waveshare 2.13" e-paper hat to the DisplayPort
// contract. The panel is portrait; Rotate presents it landscape so the
// split-screen layout gets the wide axis.
package epd

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/waveshare2in13v4"

	"github.com/roboticsmick/spectro"
)

type Opts struct {
	// Backlight is an optional LED rail pin; e-paper itself has none, but
	// some enclosures front-light the panel.
	Backlight gpio.PinOut
	// Rotate swaps the reported resolution and rotates pushed frames 90 degrees.
	Rotate bool
}

type Display struct {
	dev       *waveshare2in13v4.Dev
	backlight gpio.PinOut
	rotate    bool
	w, h      int
}

var _ spectro.DisplayPort = (*Display)(nil)

// New opens the display on the given SPI port using the hat's fixed GPIO
// wiring.
func New(p spi.Port, o *Opts) (*Display, error) {
	if o == nil {
		o = &Opts{}
	}
	opts := waveshare2in13v4.EPD2in13v4
	dev, err := waveshare2in13v4.NewHat(p, &opts)
	if err != nil {
		return nil, fmt.Errorf("epd: open: %w", err)
	}
	b := dev.Bounds()
	w, h := b.Dx(), b.Dy()
	if o.Rotate {
		w, h = h, w
	}
	return &Display{dev: dev, backlight: o.Backlight, rotate: o.Rotate, w: w, h: h}, nil
}

func (d *Display) Resolution() (w, h int) { return d.w, d.h }

func (d *Display) Push(img image.Image) error {
	if d.rotate {
		img = imaging.Rotate90(img)
	}
	if err := d.dev.Draw(d.dev.Bounds(), img, image.Point{}); err != nil {
		return fmt.Errorf("epd: draw: %w", err)
	}
	return nil
}

func (d *Display) SetBacklight(percent int) error {
	if d.backlight == nil {
		return nil
	}
	level := gpio.Low
	if percent > 0 {
		level = gpio.High
	}
	if err := d.backlight.Out(level); err != nil {
		return fmt.Errorf("epd: backlight: %w", err)
	}
	return nil
}

func (d *Display) Blank() error {
	white := image.NewRGBA(d.dev.Bounds())
	draw.Draw(white, white.Bounds(), image.White, image.Point{}, draw.Src)
	if err := d.dev.Draw(d.dev.Bounds(), white, image.Point{}); err != nil {
		return fmt.Errorf("epd: blank: %w", err)
	}
	return nil
}

func (d *Display) Shutdown() error {
	if err := d.dev.Halt(); err != nil {
		return fmt.Errorf("epd: halt: %w", err)
	}
	return nil
}

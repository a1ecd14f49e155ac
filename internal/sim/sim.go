// Package sim provides simulated collaborators so the instrument can run on
// a development host with no hardware attached.
package sim

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"math/rand"
	"os"
	"sync"

	"github.com/roboticsmick/spectro"
)

var errNotStarted = errors.New("camera not started")

const (
	samples = 640
	minWl   = 340.0
	maxWl   = 1020.0
)

// Source emits synthetic spectra: a handful of Gaussian emission lines over
// a noisy baseline, scaled by the configured integration time.
type Source struct {
	itimeMicros int
	rng         *rand.Rand
}

var _ spectro.SampleSource = (*Source)(nil)

func NewSource(seed int64) *Source {
	return &Source{itimeMicros: 100_000, rng: rand.New(rand.NewSource(seed))}
}

func (s *Source) SetIntegrationTime(micros int) error {
	s.itimeMicros = micros
	return nil
}

func (s *Source) Acquire(_ context.Context) (spectro.Spectrum, error) {
	gain := float64(s.itimeMicros) / 100_000
	sp := spectro.Spectrum{
		Wavelengths: make([]float64, samples),
		Intensities: make([]float64, samples),
	}
	peaks := []struct{ center, width, height float64 }{
		{405, 4, 900},
		{532, 3, 2400},
		{650, 6, 1500},
	}
	for i := 0; i < samples; i++ {
		wl := minWl + (maxWl-minWl)*float64(i)/float64(samples-1)
		v := 120 + 40*s.rng.Float64()
		for _, p := range peaks {
			d := (wl - p.center) / p.width
			v += p.height * gain * math.Exp(-d*d/2)
		}
		sp.Wavelengths[i] = wl
		sp.Intensities[i] = v
	}
	return sp, nil
}

func (s *Source) Close() error { return nil }

// Display keeps the last pushed frame in memory. The mutex guards snapshot
// readers outside the tick loop; the loop itself is single-threaded.
type Display struct {
	w, h int

	mu        sync.Mutex
	last      *image.RGBA
	backlight int
	down      bool
}

var _ spectro.DisplayPort = (*Display)(nil)

func NewDisplay(w, h int) *Display {
	return &Display{w: w, h: h}
}

func (d *Display) Resolution() (w, h int) { return d.w, d.h }

func (d *Display) Push(img image.Image) error {
	buf := image.NewRGBA(image.Rect(0, 0, d.w, d.h))
	draw.Draw(buf, buf.Bounds(), img, img.Bounds().Min, draw.Src)
	d.mu.Lock()
	d.last = buf
	d.mu.Unlock()
	return nil
}

func (d *Display) SetBacklight(percent int) error {
	d.mu.Lock()
	d.backlight = percent
	d.mu.Unlock()
	return nil
}

func (d *Display) Blank() error {
	blank := image.NewRGBA(image.Rect(0, 0, d.w, d.h))
	draw.Draw(blank, blank.Bounds(), image.White, image.Point{}, draw.Src)
	d.mu.Lock()
	d.last = blank
	d.mu.Unlock()
	return nil
}

func (d *Display) Shutdown() error {
	d.mu.Lock()
	d.down = true
	d.mu.Unlock()
	return nil
}

// Frame returns a copy of the last pushed frame, or nil before any push.
func (d *Display) Frame() *image.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return nil
	}
	cp := image.NewRGBA(d.last.Rect)
	copy(cp.Pix, d.last.Pix)
	return cp
}

// Backlight returns the last applied backlight level.
func (d *Display) Backlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.backlight
}

// Snapshot writes the current frame as a PNG, for eyeballing sim runs.
func (d *Display) Snapshot(path string) error {
	f := d.Frame()
	if f == nil {
		return nil
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(out, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Input is a scriptable button panel.
type Input struct {
	mu      sync.Mutex
	pressed map[spectro.Button]bool
}

var _ spectro.InputPort = (*Input)(nil)

func NewInput() *Input {
	return &Input{pressed: make(map[spectro.Button]bool)}
}

func (in *Input) Press(b spectro.Button) {
	in.mu.Lock()
	in.pressed[b] = true
	in.mu.Unlock()
}

func (in *Input) Release(b spectro.Button) {
	in.mu.Lock()
	in.pressed[b] = false
	in.mu.Unlock()
}

func (in *Input) IsPressed(b spectro.Button) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.pressed[b]
}

// Camera produces a slowly shifting gradient so held frames are
// distinguishable from live ones.
type Camera struct {
	started bool
	tick    int
}

var _ spectro.Camera = (*Camera)(nil)

func NewCamera() *Camera { return &Camera{} }

func (c *Camera) Start() error {
	c.started = true
	return nil
}

func (c *Camera) Stop() error {
	c.started = false
	return nil
}

func (c *Camera) CaptureFrame() (image.Image, error) {
	if !c.started {
		return nil, &spectro.CameraError{Op: "read", Err: errNotStarted}
	}
	c.tick++
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{uint8((x + c.tick) % 256), uint8(y % 256), 128, 255})
		}
	}
	return img, nil
}

package sim

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/roboticsmick/spectro"
)

func TestSourceSpectrumShape(t *testing.T) {
	s := NewSource(1)
	sp, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sp.Len() != samples || len(sp.Intensities) != samples {
		t.Fatalf("samples = %d/%d, want %d", sp.Len(), len(sp.Intensities), samples)
	}
	for i := 1; i < sp.Len(); i++ {
		if sp.Wavelengths[i] <= sp.Wavelengths[i-1] {
			t.Fatalf("wavelengths not strictly increasing at %d", i)
		}
	}
	if min, max, ok := sp.Bounds(); !ok || min != minWl || max != maxWl {
		t.Errorf("bounds = %g..%g (%v)", min, max, ok)
	}
}

func TestSourceGainTracksIntegrationTime(t *testing.T) {
	short := NewSource(7)
	long := NewSource(7)
	if err := short.SetIntegrationTime(10_000); err != nil {
		t.Fatal(err)
	}
	if err := long.SetIntegrationTime(1_000_000); err != nil {
		t.Fatal(err)
	}
	a, _ := short.Acquire(context.Background())
	b, _ := long.Acquire(context.Background())
	if maxOf(b.Intensities) <= maxOf(a.Intensities) {
		t.Error("longer integration time did not raise peak intensity")
	}
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs {
		if v > m {
			m = v
		}
	}
	return m
}

func TestDisplayHoldsLastFrame(t *testing.T) {
	d := NewDisplay(100, 50)
	if d.Frame() != nil {
		t.Fatal("frame before any push")
	}
	src := image.NewRGBA(image.Rect(0, 0, 100, 50))
	src.Set(3, 4, color.RGBA{255, 0, 0, 255})
	if err := d.Push(src); err != nil {
		t.Fatal(err)
	}
	f := d.Frame()
	if f == nil {
		t.Fatal("no frame after push")
	}
	if r, _, _, _ := f.At(3, 4).RGBA(); r != 0xffff {
		t.Error("pushed pixel lost")
	}
	if err := d.Blank(); err != nil {
		t.Fatal(err)
	}
	// Blank writes white, so the formerly-red pixel's green channel maxes out
	if _, g, _, _ := d.Frame().At(3, 4).RGBA(); g != 0xffff {
		t.Error("blank did not clear the frame")
	}
}

func TestCameraLifecycle(t *testing.T) {
	c := NewCamera()
	if _, err := c.CaptureFrame(); err == nil {
		t.Fatal("capture before start should fail")
	} else if _, ok := err.(*spectro.CameraError); !ok {
		t.Fatalf("error type = %T, want *CameraError", err)
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	img, err := c.CaptureFrame()
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Empty() {
		t.Error("empty camera frame")
	}
	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CaptureFrame(); err == nil {
		t.Error("capture after stop should fail")
	}
}

func TestInputLevels(t *testing.T) {
	in := NewInput()
	if in.IsPressed(spectro.ButtonAction) {
		t.Fatal("pressed before press")
	}
	in.Press(spectro.ButtonAction)
	if !in.IsPressed(spectro.ButtonAction) || !in.IsPressed(spectro.ButtonAction) {
		t.Fatal("level input should stay pressed until released")
	}
	in.Release(spectro.ButtonAction)
	if in.IsPressed(spectro.ButtonAction) {
		t.Fatal("pressed after release")
	}
}

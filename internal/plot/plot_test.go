package plot

import (
	"math"
	"testing"
)

func testData() (wl, in []float64) {
	n := 128
	wl = make([]float64, n)
	in = make([]float64, n)
	for i := 0; i < n; i++ {
		wl[i] = 340.5 + float64(i)*(1020.3-340.5)/float64(n-1)
		d := (wl[i] - 532) / 3
		in[i] = 150 + 2000*math.Exp(-d*d/2)
	}
	return wl, in
}

func TestPreviewSize(t *testing.T) {
	wl, in := testData()
	img, err := Renderer{}.Preview(wl, in, 100_000, 400, 300)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 300 {
		t.Errorf("preview bounds = %v, want 400x300", b)
	}
}

func TestArchiveSize(t *testing.T) {
	wl, in := testData()
	img, err := Renderer{}.Archive(wl, in, 250_000)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if b := img.Bounds(); b.Dx() != ArchiveWidth || b.Dy() != ArchiveHeight {
		t.Errorf("archive bounds = %v, want %dx%d", b, ArchiveWidth, ArchiveHeight)
	}
}

func TestRenderRejectsShortSpectrum(t *testing.T) {
	tests := []struct {
		name   string
		wl, in []float64
	}{
		{"empty", nil, nil},
		{"single sample", []float64{500}, []float64{1}},
		{"mismatched lengths", []float64{500, 501}, []float64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := (Renderer{}).Preview(tt.wl, tt.in, 1000, 400, 300); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestIntegerTicksStayInRange(t *testing.T) {
	tests := []struct{ min, max float64 }{
		{340.5, 1020.3},
		{400, 700},
		{532.2, 534.9},
		{0.1, 7.9},
	}
	for _, tt := range tests {
		ticks := integerTicks(tt.min, tt.max)
		if len(ticks) == 0 {
			t.Errorf("no ticks for [%g, %g]", tt.min, tt.max)
			continue
		}
		for _, tk := range ticks {
			if tk.Value < tt.min || tk.Value > tt.max {
				t.Errorf("tick %g outside [%g, %g]", tk.Value, tt.min, tt.max)
			}
			if tk.Value != math.Trunc(tk.Value) {
				t.Errorf("tick %g not an integer", tk.Value)
			}
		}
	}
}

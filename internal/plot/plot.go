// Package plot renders spectrum charts. Preview sizes suit the on-device
// display; Archive renders the high-DPI copy stored with a saved record.
package plot

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"strconv"

	"github.com/wcharczuk/go-chart/v2"
)

const (
	previewDPI = 72
	archiveDPI = 150

	// ArchiveWidth and ArchiveHeight size the persisted plot.
	ArchiveWidth  = 1600
	ArchiveHeight = 1200
)

type Renderer struct{}

// Preview renders a w-by-h chart for the live display.
func (Renderer) Preview(wavelengths, intensities []float64, itimeMicros, w, h int) (image.Image, error) {
	return render(wavelengths, intensities, itimeMicros, w, h, previewDPI)
}

// Archive renders the high-resolution chart written next to the CSV.
func (Renderer) Archive(wavelengths, intensities []float64, itimeMicros int) (image.Image, error) {
	return render(wavelengths, intensities, itimeMicros, ArchiveWidth, ArchiveHeight, archiveDPI)
}

func render(wl, in []float64, itimeMicros, w, h int, dpi float64) (image.Image, error) {
	if len(wl) < 2 || len(wl) != len(in) {
		return nil, fmt.Errorf("plot: need two or more paired samples, got %d/%d", len(wl), len(in))
	}
	grid := chart.Style{StrokeColor: chart.ColorAlternateGray, StrokeWidth: 1.0}
	ch := chart.Chart{
		Title:  fmt.Sprintf("Integration: %.3fs", float64(itimeMicros)/1e6),
		Width:  w,
		Height: h,
		DPI:    dpi,
		XAxis: chart.XAxis{
			Name:           "Wavelength (nm)",
			Range:          &chart.ContinuousRange{Min: wl[0], Max: wl[len(wl)-1]},
			Ticks:          integerTicks(wl[0], wl[len(wl)-1]),
			GridMajorStyle: grid,
		},
		YAxis: chart.YAxis{
			Name:           "Intensity",
			GridMajorStyle: grid,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{XValues: wl, YValues: in},
		},
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("plot: render: %w", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("plot: decode: %w", err)
	}
	return img, nil
}

// integerTicks places whole-number labels inside [min, max] only, stepping
// so that at most eight ticks appear.
func integerTicks(min, max float64) []chart.Tick {
	steps := []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000}
	span := max - min
	step := steps[len(steps)-1]
	for _, s := range steps {
		if span/s <= 8 {
			step = s
			break
		}
	}
	var ticks []chart.Tick
	for t := math.Ceil(min/step) * step; t <= max; t += step {
		ticks = append(ticks, chart.Tick{Value: t, Label: strconv.Itoa(int(t))})
	}
	return ticks
}

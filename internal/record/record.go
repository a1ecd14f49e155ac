// Package record persists measurements: a tabular CSV, a high-resolution
// plot PNG, and optionally a photo JPEG, all committed atomically per
// record.
package record

import (
	"context"
	"encoding/csv"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/roboticsmick/spectro"
	"github.com/roboticsmick/spectro/internal/plot"
)

// Plotter renders the archived chart. Satisfied by plot.Renderer.
type Plotter interface {
	Archive(wavelengths, intensities []float64, itimeMicros int) (image.Image, error)
}

type Writer struct {
	dir   string
	plots Plotter
	log   *slog.Logger
}

var _ spectro.RecordWriter = (*Writer)(nil)

// NewWriter creates the output directory if needed. A nil plotter selects
// the default chart renderer.
func NewWriter(dir string, plots Plotter, log *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("record: create %s: %w", dir, err)
	}
	if plots == nil {
		plots = plot.Renderer{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Writer{dir: dir, plots: plots, log: log}, nil
}

// Persist writes all artifacts for one record and returns its identifier,
// spectrum_<UTCYYYYMMDDHHMMSS>. Artifacts are staged in a temporary
// directory and renamed into place only after every one of them has been
// written, so a failed call leaves nothing under the final names.
func (w *Writer) Persist(ctx context.Context, rec spectro.Record) (string, error) {
	id := "spectrum_" + rec.Timestamp.UTC().Format("20060102150405")

	tmp, err := os.MkdirTemp(w.dir, "."+id+"-")
	if err != nil {
		return "", &spectro.PersistenceError{ID: id, Err: err}
	}
	defer os.RemoveAll(tmp)

	if err := ctx.Err(); err != nil {
		return "", &spectro.PersistenceError{ID: id, Err: err}
	}

	names := []string{id + ".csv"}
	if err := w.writeCSV(filepath.Join(tmp, names[0]), rec); err != nil {
		return "", &spectro.PersistenceError{ID: id, Err: err}
	}

	names = append(names, id+".png")
	if err := w.writePlot(filepath.Join(tmp, names[1]), rec); err != nil {
		return "", &spectro.PersistenceError{ID: id, Err: err}
	}

	if rec.Photo != nil {
		names = append(names, id+"_photo.jpg")
		if err := writeJPEG(filepath.Join(tmp, names[2]), rec.Photo); err != nil {
			return "", &spectro.PersistenceError{ID: id, Err: err}
		}
	}

	for _, name := range names {
		if err := os.Rename(filepath.Join(tmp, name), filepath.Join(w.dir, name)); err != nil {
			return "", &spectro.PersistenceError{ID: id, Err: err}
		}
	}

	w.log.Debug("record committed", "id", id, "artifacts", len(names))
	return id, nil
}

func (w *Writer) writeCSV(path string, rec spectro.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(f)

	rows := [][]string{
		append([]string{"Wavelengths"}, formatFloats(rec.Spectrum.Wavelengths)...),
		append([]string{"Intensities"}, formatFloats(rec.Spectrum.Intensities)...),
		{"Timestamp", rec.Timestamp.UTC().Format("2006-01-02 15:04:05")},
		{"Integration Time", strconv.Itoa(rec.IntegrationTimeMicros)},
	}
	if rec.Latitude != nil || rec.Longitude != nil {
		rows = append(rows,
			[]string{"Latitude", formatGeo(rec.Latitude)},
			[]string{"Longitude", formatGeo(rec.Longitude)})
	}
	if err := cw.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (w *Writer) writePlot(path string, rec spectro.Record) error {
	img, err := w.plots.Archive(rec.Spectrum.Wavelengths, rec.Spectrum.Intensities, rec.IntegrationTimeMicros)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloats(vs []float64) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return out
}

func formatGeo(v *float64) string {
	if v == nil {
		return "NA"
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}

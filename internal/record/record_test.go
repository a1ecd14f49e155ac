package record

import (
	"context"
	"encoding/csv"
	"errors"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roboticsmick/spectro"
)

type fakePlotter struct {
	err   error
	calls int
}

func (f *fakePlotter) Archive(wl, in []float64, itime int) (image.Image, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return image.NewRGBA(image.Rect(0, 0, 16, 12)), nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testRecord() spectro.Record {
	return spectro.Record{
		Timestamp: time.Date(2023, 6, 1, 12, 30, 45, 0, time.UTC),
		Spectrum: spectro.Spectrum{
			Wavelengths: []float64{400, 450.5, 500},
			Intensities: []float64{10, 2000, 35.25},
		},
		IntegrationTimeMicros: 100_000,
	}
}

func TestPersistWritesAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, &fakePlotter{}, discard())
	if err != nil {
		t.Fatal(err)
	}

	rec := testRecord()
	rec.Photo = image.NewRGBA(image.Rect(0, 0, 8, 8))
	id, err := w.Persist(context.Background(), rec)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if id != "spectrum_20230601123045" {
		t.Errorf("id = %q", id)
	}
	for _, name := range []string{id + ".csv", id + ".png", id + "_photo.jpg"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}
}

func TestPersistCSVLayout(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, &fakePlotter{}, discard())
	if err != nil {
		t.Fatal(err)
	}
	lat := -27.5
	rec := testRecord()
	rec.Latitude = &lat // longitude deliberately unknown

	id, err := w.Persist(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(filepath.Join(dir, id+".csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	if len(rows) != 6 {
		t.Fatalf("rows = %d, want 6", len(rows))
	}
	if rows[0][0] != "Wavelengths" || len(rows[0]) != 4 || rows[0][2] != "450.5" {
		t.Errorf("wavelength row = %v", rows[0])
	}
	if rows[1][0] != "Intensities" || rows[1][3] != "35.25" {
		t.Errorf("intensity row = %v", rows[1])
	}
	if rows[2][0] != "Timestamp" || rows[2][1] != "2023-06-01 12:30:45" {
		t.Errorf("timestamp row = %v", rows[2])
	}
	if rows[3][0] != "Integration Time" || rows[3][1] != "100000" {
		t.Errorf("integration row = %v", rows[3])
	}
	if rows[4][0] != "Latitude" || !strings.HasPrefix(rows[4][1], "-27.5") {
		t.Errorf("latitude row = %v", rows[4])
	}
	if rows[5][0] != "Longitude" || rows[5][1] != "NA" {
		t.Errorf("longitude row = %v", rows[5])
	}
}

func TestPersistOmitsGeoRowsWhenUnset(t *testing.T) {
	dir := t.TempDir()
	w, _ := NewWriter(dir, &fakePlotter{}, discard())
	id, err := w.Persist(context.Background(), testRecord())
	if err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, id+".csv"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "Latitude") {
		t.Error("geo rows present on a record without location")
	}
}

// TestPersistAtomicOnPlotFailure: when the image step fails, the CSV must
// not appear under its final name either.
func TestPersistAtomicOnPlotFailure(t *testing.T) {
	dir := t.TempDir()
	w, _ := NewWriter(dir, &fakePlotter{err: errors.New("render broke")}, discard())

	_, err := w.Persist(context.Background(), testRecord())
	if err == nil {
		t.Fatal("expected error")
	}
	var perr *spectro.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T, want *PersistenceError", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("output dir not clean after failure: %v", entries)
	}
}

func TestPersistCancelledContext(t *testing.T) {
	dir := t.TempDir()
	w, _ := NewWriter(dir, &fakePlotter{}, discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.Persist(ctx, testRecord()); err == nil {
		t.Fatal("expected error on cancelled context")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("output dir not clean after cancellation: %v", entries)
	}
}

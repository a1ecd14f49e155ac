package spectro

import (
	"context"
	"image"
	"time"
)

// Button identifies one of the three physical buttons on the instrument.
type Button uint8

const (
	ButtonNone Button = iota
	// ButtonAction freezes a live spectrum or captures a photo.
	ButtonAction
	// ButtonSave persists the held spectrum (and photo, if any).
	ButtonSave
	// ButtonBack discards held data and backs out of the current mode.
	ButtonBack
)

func (b Button) String() string {
	switch b {
	case ButtonNone:
		return "none"
	case ButtonAction:
		return "action"
	case ButtonSave:
		return "save"
	case ButtonBack:
		return "back"
	default:
		return "INVALID"
	}
}

// Mode is the top-level operating mode of the instrument.
type Mode uint8

const (
	ModeIdle Mode = iota
	ModeSpectra
	ModeCamera
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeSpectra:
		return "spectra"
	case ModeCamera:
		return "camera"
	default:
		return "INVALID"
	}
}

// SubMode refines ModeSpectra and ModeCamera. It is SubNone in ModeIdle.
type SubMode uint8

const (
	SubNone SubMode = iota
	SubLive
	SubFrozen
	SubPreview
	SubHeld
)

func (s SubMode) String() string {
	switch s {
	case SubNone:
		return "none"
	case SubLive:
		return "live"
	case SubFrozen:
		return "frozen"
	case SubPreview:
		return "preview"
	case SubHeld:
		return "held"
	default:
		return "INVALID"
	}
}

// Spectrum is a single acquisition: paired wavelength/intensity samples with
// wavelengths strictly increasing. It is never mutated after acquisition.
type Spectrum struct {
	Wavelengths []float64
	Intensities []float64
}

// Len returns the number of samples.
func (s Spectrum) Len() int { return len(s.Wavelengths) }

// Bounds returns the first and last wavelength. It reports ok=false for a
// spectrum with fewer than two samples, which cannot be plotted.
func (s Spectrum) Bounds() (min, max float64, ok bool) {
	if len(s.Wavelengths) < 2 || len(s.Wavelengths) != len(s.Intensities) {
		return 0, 0, false
	}
	return s.Wavelengths[0], s.Wavelengths[len(s.Wavelengths)-1], true
}

// Record is one persisted measurement.
type Record struct {
	Timestamp             time.Time // UTC, second precision
	Spectrum              Spectrum
	IntegrationTimeMicros int
	Photo                 image.Image // optional
	Latitude              *float64    // optional
	Longitude             *float64    // optional
}

// SampleSource wraps spectrometer acquisition.
type SampleSource interface {
	// SetIntegrationTime configures the exposure duration for subsequent
	// acquisitions.
	SetIntegrationTime(micros int) error
	// Acquire reads one spectrum at the configured integration time.
	// Failures are of type *AcquisitionError.
	Acquire(ctx context.Context) (Spectrum, error)
	Close() error
}

// DisplayPort pushes composited frames to the physical display.
type DisplayPort interface {
	Resolution() (w, h int)
	Push(img image.Image) error
	SetBacklight(percent int) error
	Blank() error
	Shutdown() error
}

// InputPort reports the current debounced level of each button. It does no
// latching; edge detection belongs to the state machine.
type InputPort interface {
	IsPressed(b Button) bool
}

// Camera is the optional photo collaborator. Failures are of type
// *CameraError.
type Camera interface {
	Start() error
	Stop() error
	CaptureFrame() (image.Image, error)
}

// RecordWriter persists one record and returns its identifier. A failed call
// must leave no partial artifacts behind. Failures are of type
// *PersistenceError.
type RecordWriter interface {
	Persist(ctx context.Context, rec Record) (id string, err error)
}

// Package spectro drives a handheld spectrometer: a fixed-rate loop that
// polls three buttons, acquires or re-renders a spectrum, composites a
// split-screen frame, and pushes it to the display. Saved measurements go
// to durable storage through a RecordWriter, optionally with a photo.
package spectro

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/roboticsmick/spectro/internal/compose"
	"github.com/roboticsmick/spectro/internal/plot"
)

const (
	// releasePoll paces the bounded wait for a consumed button edge to be
	// released before the edge detector is re-armed.
	releasePoll    = 10 * time.Millisecond
	maxReleaseWait = 2 * time.Second

	// infoHoldTicks keeps the ancillary info lines on screen after an idle
	// info request (~3s at the default tick rate).
	infoHoldTicks = 30

	// previewPlotW/H is the chart render size before the compositor scales
	// it into the plot region. Rendering at the region's native size makes
	// axis text unreadable on small panels.
	previewPlotW = 400
	previewPlotH = 300
)

// Deps are the hardware collaborators the rig drives. Camera is optional;
// everything else is required.
type Deps struct {
	Source  SampleSource
	Display DisplayPort
	Input   InputPort
	Camera  Camera
	Writer  RecordWriter
	Logger  *slog.Logger
}

// Rig owns the acquisition/display state machine and all session state.
// There are no package-level handles: one Rig is constructed at startup and
// torn down when Run returns. Session state is mutated only by the tick
// loop, never concurrently.
type Rig struct {
	cfg Config
	log *slog.Logger

	source  SampleSource
	display DisplayPort
	input   InputPort
	camera  Camera
	writer  RecordWriter

	comp   *compose.Compositor
	plots  plot.Renderer
	period time.Duration

	mode Mode
	sub  SubMode

	liveSample *Spectrum   // most recent live acquisition, this tick only
	spectrum   *Spectrum   // frozen spectrum held for save/discard
	photo      image.Image // held photo, camera mode only
	camFrame   image.Image // last camera preview frame

	camRunning bool
	lastID     string
	infoTicks  int

	wasPressed [4]bool // button levels from the previous poll
}

// New validates the collaborators, configures the spectrometer exposure and
// the backlight, and returns a rig ready to Run. Collaborator bring-up
// failures are *HardwareInitError.
func New(cfg Config, deps Deps) (*Rig, error) {
	if deps.Source == nil {
		return nil, errors.New("must provide a sample source")
	}
	if deps.Display == nil {
		return nil, errors.New("must provide a display")
	}
	if deps.Input == nil {
		return nil, errors.New("must provide button input")
	}
	if deps.Writer == nil {
		return nil, errors.New("must provide a record writer")
	}
	cfg.defaults()

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	w, h := deps.Display.Resolution()
	if w <= 0 || h <= 0 {
		return nil, &HardwareInitError{Component: "display", Err: fmt.Errorf("bad resolution %dx%d", w, h)}
	}

	if err := deps.Source.SetIntegrationTime(cfg.IntegrationTimeMicros); err != nil {
		return nil, &HardwareInitError{Component: "spectrometer", Err: err}
	}
	if err := deps.Display.SetBacklight(cfg.BacklightPercent); err != nil {
		return nil, &HardwareInitError{Component: "display", Err: err}
	}

	return &Rig{
		cfg:     cfg,
		log:     log,
		source:  deps.Source,
		display: deps.Display,
		input:   deps.Input,
		camera:  deps.Camera,
		writer:  deps.Writer,
		comp:    compose.New(w, h, nil),
		period:  time.Second / time.Duration(cfg.TickRate),
	}, nil
}

// Mode returns the current mode and sub-mode.
func (r *Rig) Mode() (Mode, SubMode) { return r.mode, r.sub }

// Spectrum returns the held spectrum, or nil outside frozen/camera modes.
func (r *Rig) Spectrum() *Spectrum { return r.spectrum }

// Photo returns the held photo, or nil.
func (r *Rig) Photo() image.Image { return r.photo }

// LastRecordID returns the identifier of the most recently saved record.
func (r *Rig) LastRecordID() string { return r.lastID }

// Run drives the tick loop until ctx is cancelled, then performs the
// cleanup contract: release the spectrometer, stop the camera, blank and
// power down the display. A clean cancellation returns nil.
func (r *Rig) Run(ctx context.Context) error {
	r.log.Info("rig started",
		"tick_rate_hz", r.cfg.TickRate,
		"integration_us", r.cfg.IntegrationTimeMicros,
		"camera", r.cameraConfigured())

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return nil
		case <-ticker.C:
			if err := r.RunTick(ctx); err != nil {
				r.shutdown()
				return err
			}
		}
	}
}

// RunTick runs one iteration: poll input, do state-specific work, composite
// and push a frame, then apply any transition the polled edge implies.
func (r *Rig) RunTick(ctx context.Context) error {
	edge := r.pollEdge()

	if frame, ok := r.tickWork(ctx); ok {
		if err := r.display.Push(frame); err != nil {
			r.log.Error("display push failed", "err", err, "mode", r.mode, "sub", r.sub)
		}
	}

	if edge != ButtonNone {
		r.applyEdge(ctx, edge)
	}
	return nil
}

// pollEdge samples all buttons and returns the first newly-pressed one, if
// any. Priority follows button order when several land on the same tick.
func (r *Rig) pollEdge() Button {
	edge := ButtonNone
	for _, b := range []Button{ButtonAction, ButtonSave, ButtonBack} {
		p := r.input.IsPressed(b)
		if p && !r.wasPressed[b] && edge == ButtonNone {
			edge = b
		}
		r.wasPressed[b] = p
	}
	return edge
}

// tickWork performs the per-mode work and returns the frame to push.
// ok=false means the tick is skipped and the previous frame stays on screen.
func (r *Rig) tickWork(ctx context.Context) (image.Image, bool) {
	switch {
	case r.mode == ModeIdle:
		return r.idleFrame(), true

	case r.mode == ModeSpectra && r.sub == SubLive:
		sp, err := r.source.Acquire(ctx)
		if err != nil {
			r.log.Warn("acquisition failed, skipping tick", "err", err, "mode", r.mode, "sub", r.sub)
			return nil, false
		}
		r.liveSample = &sp
		return r.spectrumFrame(sp, "LIVE", "B1 freeze", "B3 exit"), true

	case r.mode == ModeSpectra && r.sub == SubFrozen:
		return r.spectrumFrame(*r.spectrum, "FROZEN", "B2 save", "B3 discard"), true

	case r.mode == ModeCamera && r.sub == SubPreview:
		img, err := r.camera.CaptureFrame()
		if err != nil {
			r.log.Error("camera capture failed, dropping to idle", "err", err, "mode", r.mode, "sub", r.sub)
			r.resetSession()
			return r.idleFrame(), true
		}
		r.camFrame = img
		return r.comp.Compose(img, []string{"CAMERA", "B1 capture"}), true

	case r.mode == ModeCamera && r.sub == SubHeld:
		return r.comp.Compose(r.photo, []string{"PHOTO", "B2 save", "B3 retake"}), true
	}
	return nil, false
}

func (r *Rig) idleFrame() *image.RGBA {
	lines := []string{"READY", "B1 start live capture"}
	if r.lastID != "" {
		lines = append(lines, "last "+r.lastID)
	}
	if r.infoTicks > 0 {
		r.infoTicks--
		lines = append(lines,
			fmt.Sprintf("tick %d Hz", r.cfg.TickRate),
			fmt.Sprintf("itime %d us", r.cfg.IntegrationTimeMicros),
			"out "+r.cfg.OutputDir)
	}
	return r.comp.Compose(nil, lines)
}

func (r *Rig) spectrumFrame(sp Spectrum, lines ...string) *image.RGBA {
	img, err := r.plots.Preview(sp.Wavelengths, sp.Intensities, r.cfg.IntegrationTimeMicros, previewPlotW, previewPlotH)
	if err != nil {
		r.log.Warn("preview plot failed", "err", err, "mode", r.mode, "sub", r.sub)
		lines = append(lines, "plot unavailable")
		return r.comp.Compose(nil, lines)
	}
	if wl, in, ok := peak(sp); ok {
		lines = append(lines, fmt.Sprintf("peak %.0f @ %.0fnm", in, wl))
	}
	return r.comp.Compose(img, lines)
}

// peak reports the strongest sample of a spectrum.
func peak(sp Spectrum) (wavelength, intensity float64, ok bool) {
	if sp.Len() == 0 || len(sp.Wavelengths) != len(sp.Intensities) {
		return 0, 0, false
	}
	best := 0
	for i, v := range sp.Intensities {
		if v > sp.Intensities[best] {
			best = i
		}
	}
	return sp.Wavelengths[best], sp.Intensities[best], true
}

// applyEdge applies the transition table for the consumed edge, then waits
// (bounded) for the button to be released before re-arming.
func (r *Rig) applyEdge(ctx context.Context, b Button) {
	switch r.mode {
	case ModeIdle:
		switch b {
		case ButtonAction:
			r.setMode(ModeSpectra, SubLive, b)
		case ButtonSave, ButtonBack:
			r.infoTicks = infoHoldTicks
		}

	case ModeSpectra:
		switch {
		case r.sub == SubLive && b == ButtonAction:
			if r.liveSample != nil {
				held := *r.liveSample
				r.spectrum = &held
				r.setMode(ModeSpectra, SubFrozen, b)
			}
		case r.sub == SubLive && b == ButtonBack:
			r.spectrum = nil
			r.liveSample = nil
			r.setMode(ModeIdle, SubNone, b)
		case r.sub == SubFrozen && b == ButtonSave:
			if r.persist(ctx, nil) {
				if r.cameraConfigured() {
					r.enterCameraPreview(b)
				} else {
					r.resetSession()
				}
			}
		case r.sub == SubFrozen && b == ButtonBack:
			r.spectrum = nil
			r.setMode(ModeSpectra, SubLive, b)
		}

	case ModeCamera:
		switch {
		case r.sub == SubPreview && b == ButtonAction:
			if r.camFrame != nil {
				r.photo = r.camFrame
				r.setMode(ModeCamera, SubHeld, b)
			}
		case r.sub == SubHeld && b == ButtonSave:
			if r.persist(ctx, r.photo) {
				r.resetSession()
			}
		case r.sub == SubHeld && b == ButtonBack:
			r.photo = nil
			r.setMode(ModeCamera, SubPreview, b)
		}
	}

	r.waitRelease(ctx, b)
}

// persist writes the held spectrum (and optional photo) as one record.
// On failure it logs and returns false, leaving the machine in the pre-save
// sub-mode so the save can be retried.
func (r *Rig) persist(ctx context.Context, photo image.Image) bool {
	rec := Record{
		Timestamp:             time.Now().UTC().Truncate(time.Second),
		Spectrum:              *r.spectrum,
		IntegrationTimeMicros: r.cfg.IntegrationTimeMicros,
		Photo:                 photo,
	}
	if r.cfg.Geo.Enabled {
		rec.Latitude = r.cfg.Geo.Latitude
		rec.Longitude = r.cfg.Geo.Longitude
	}
	id, err := r.writer.Persist(ctx, rec)
	if err != nil {
		r.log.Error("persist failed", "err", err, "mode", r.mode, "sub", r.sub, "button", ButtonSave)
		return false
	}
	r.lastID = id
	r.log.Info("record saved", "id", id, "samples", rec.Spectrum.Len(), "photo", photo != nil)
	return true
}

func (r *Rig) cameraConfigured() bool {
	return r.camera != nil && r.cfg.CameraEnabled
}

func (r *Rig) enterCameraPreview(b Button) {
	if err := r.camera.Start(); err != nil {
		r.log.Error("camera start failed, dropping to idle", "err", err, "mode", r.mode, "sub", r.sub)
		r.resetSession()
		return
	}
	r.camRunning = true
	r.setMode(ModeCamera, SubPreview, b)
}

func (r *Rig) stopCamera() {
	if !r.camRunning {
		return
	}
	if err := r.camera.Stop(); err != nil {
		r.log.Warn("camera stop failed", "err", err)
	}
	r.camRunning = false
}

// resetSession drops all held data and returns to idle.
func (r *Rig) resetSession() {
	r.stopCamera()
	r.liveSample = nil
	r.spectrum = nil
	r.photo = nil
	r.camFrame = nil
	r.setMode(ModeIdle, SubNone, ButtonNone)
}

func (r *Rig) setMode(m Mode, s SubMode, b Button) {
	if r.mode == m && r.sub == s {
		return
	}
	r.log.Debug("state change", "from", r.mode, "from_sub", r.sub, "to", m, "to_sub", s, "button", b)
	r.mode = m
	r.sub = s
}

// waitRelease holds until the consumed button reads released, with a hard
// deadline so a stuck switch cannot wedge the loop or delay cancellation.
func (r *Rig) waitRelease(ctx context.Context, b Button) {
	deadline := time.Now().Add(maxReleaseWait)
	for r.input.IsPressed(b) {
		if ctx.Err() != nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(releasePoll)
	}
	r.wasPressed[b] = false
}

// shutdown performs the cleanup contract.
func (r *Rig) shutdown() {
	r.log.Info("shutting down")
	r.stopCamera()
	if err := r.source.Close(); err != nil {
		r.log.Warn("spectrometer close failed", "err", err)
	}
	if err := r.display.Blank(); err != nil {
		r.log.Warn("display blank failed", "err", err)
	}
	if err := r.display.SetBacklight(0); err != nil {
		r.log.Warn("backlight off failed", "err", err)
	}
	if err := r.display.Shutdown(); err != nil {
		r.log.Warn("display shutdown failed", "err", err)
	}
	r.log.Info("shutdown complete")
}

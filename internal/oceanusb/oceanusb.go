// Package oceanusb acquires spectra from Ocean Optics USB2000+-class
// spectrometers over USB bulk transfers.
package oceanusb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/gousb"

	"github.com/roboticsmick/spectro"
)

const (
	VendorID  = 0x2457
	ProductID = 0x101E

	cmdInit            = 0x01
	cmdSetIntegration  = 0x02
	cmdQueryInfo       = 0x05
	cmdRequestSpectrum = 0x09

	// Query-info indexes for the wavelength calibration polynomial.
	infoWavecalIntercept = 0x01
	infoWavecalFirst     = 0x02
	infoWavecalSecond    = 0x03
	infoWavecalThird     = 0x04

	numPixels = 2048
	syncByte  = 0x69
)

// Device is a spectro.SampleSource backed by a USB spectrometer.
type Device struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	intf *gousb.Interface
	done func()

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	// wavelength calibration polynomial, intercept first
	coeffs [4]float64

	log *slog.Logger
}

var _ spectro.SampleSource = (*Device)(nil)

// Open finds the first attached spectrometer, claims its interface, and
// reads the wavelength calibration from the device.
func Open(log *slog.Logger) (*Device, error) {
	if log == nil {
		log = slog.Default()
	}
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(VendorID, ProductID)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("oceanusb: open: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("oceanusb: no spectrometer found (VID:0x%04X PID:0x%04X)", VendorID, ProductID)
	}

	// Needed on Linux when a kernel driver has grabbed the interface.
	_ = dev.SetAutoDetach(true)

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("oceanusb: claim interface: %w", err)
	}

	d := &Device{ctx: ctx, dev: dev, intf: intf, done: done, log: log}
	if err := d.findEndpoints(); err != nil {
		d.Close()
		return nil, err
	}
	if _, err := d.epOut.Write([]byte{cmdInit}); err != nil {
		d.Close()
		return nil, fmt.Errorf("oceanusb: init command: %w", err)
	}
	if err := d.readWavecal(); err != nil {
		d.Close()
		return nil, err
	}

	log.Info("spectrometer ready",
		"coeffs", fmt.Sprintf("%.4g %.4g %.4g %.4g", d.coeffs[0], d.coeffs[1], d.coeffs[2], d.coeffs[3]))
	return d, nil
}

// findEndpoints discovers the bulk OUT (commands) and bulk IN (spectra)
// endpoints from the interface descriptors.
func (d *Device) findEndpoints() error {
	for _, ep := range d.intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionOut:
			if d.epOut == nil {
				out, err := d.intf.OutEndpoint(ep.Number)
				if err != nil {
					return fmt.Errorf("oceanusb: OUT endpoint: %w", err)
				}
				d.epOut = out
			}
		case gousb.EndpointDirectionIn:
			if d.epIn == nil {
				in, err := d.intf.InEndpoint(ep.Number)
				if err != nil {
					return fmt.Errorf("oceanusb: IN endpoint: %w", err)
				}
				d.epIn = in
			}
		}
	}
	if d.epOut == nil || d.epIn == nil {
		return errors.New("oceanusb: bulk endpoints not found")
	}
	return nil
}

// readWavecal queries the four wavelength calibration coefficients. The
// device returns them as NUL-padded ASCII decimal strings.
func (d *Device) readWavecal() error {
	for i, idx := range []byte{infoWavecalIntercept, infoWavecalFirst, infoWavecalSecond, infoWavecalThird} {
		if _, err := d.epOut.Write([]byte{cmdQueryInfo, idx}); err != nil {
			return fmt.Errorf("oceanusb: query wavecal %d: %w", i, err)
		}
		buf := make([]byte, 17)
		n, err := d.epIn.Read(buf)
		if err != nil || n < 3 {
			return fmt.Errorf("oceanusb: read wavecal %d: %w", i, err)
		}
		raw := strings.TrimRight(string(buf[2:n]), "\x00")
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return fmt.Errorf("oceanusb: parse wavecal %d %q: %w", i, raw, err)
		}
		d.coeffs[i] = v
	}
	if d.coeffs[1] <= 0 {
		return errors.New("oceanusb: non-increasing wavelength calibration")
	}
	return nil
}

// SetIntegrationTime configures the exposure duration in microseconds.
func (d *Device) SetIntegrationTime(micros int) error {
	cmd := make([]byte, 5)
	cmd[0] = cmdSetIntegration
	binary.LittleEndian.PutUint32(cmd[1:], uint32(micros))
	if _, err := d.epOut.Write(cmd); err != nil {
		return fmt.Errorf("oceanusb: set integration time: %w", err)
	}
	return nil
}

// Acquire requests one spectrum and reads the packetized pixel data. All
// failures are *spectro.AcquisitionError so the tick loop can skip and
// retry.
func (d *Device) Acquire(ctx context.Context) (spectro.Spectrum, error) {
	if _, err := d.epOut.WriteContext(ctx, []byte{cmdRequestSpectrum}); err != nil {
		return spectro.Spectrum{}, &spectro.AcquisitionError{Op: "request", Err: err}
	}

	raw := make([]byte, numPixels*2)
	for off := 0; off < len(raw); {
		n, err := d.epIn.ReadContext(ctx, raw[off:])
		if err != nil {
			return spectro.Spectrum{}, &spectro.AcquisitionError{Op: "read", Err: err}
		}
		off += n
	}
	tail := make([]byte, 1)
	if _, err := d.epIn.ReadContext(ctx, tail); err != nil {
		return spectro.Spectrum{}, &spectro.AcquisitionError{Op: "sync", Err: err}
	}
	if tail[0] != syncByte {
		return spectro.Spectrum{}, &spectro.AcquisitionError{Op: "sync", Err: fmt.Errorf("bad sync byte 0x%02X", tail[0])}
	}

	sp := spectro.Spectrum{
		Wavelengths: make([]float64, numPixels),
		Intensities: make([]float64, numPixels),
	}
	for p := 0; p < numPixels; p++ {
		fp := float64(p)
		sp.Wavelengths[p] = d.coeffs[0] + d.coeffs[1]*fp + d.coeffs[2]*fp*fp + d.coeffs[3]*fp*fp*fp
		sp.Intensities[p] = float64(binary.LittleEndian.Uint16(raw[p*2:]))
	}
	return sp, nil
}

// Close releases the interface, device, and USB context.
func (d *Device) Close() error {
	if d.done != nil {
		d.done()
		d.done = nil
	}
	var err error
	if d.dev != nil {
		err = d.dev.Close()
		d.dev = nil
	}
	if d.ctx != nil {
		if cerr := d.ctx.Close(); err == nil {
			err = cerr
		}
		d.ctx = nil
	}
	return err
}

// Package camera attaches photos to saved spectra via an OpenCV video
// capture device.
package camera

import (
	"errors"
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/roboticsmick/spectro"
)

type Camera struct {
	deviceID int
	cap      *gocv.VideoCapture
	log      *slog.Logger
}

var _ spectro.Camera = (*Camera)(nil)

// New returns an unopened camera; the device is grabbed by Start so it is
// only held while the instrument is in camera mode.
func New(deviceID int, log *slog.Logger) *Camera {
	if log == nil {
		log = slog.Default()
	}
	return &Camera{deviceID: deviceID, log: log}
}

func (c *Camera) Start() error {
	if c.cap != nil {
		return nil
	}
	cap, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return &spectro.CameraError{Op: "open", Err: err}
	}
	c.cap = cap
	c.log.Debug("camera opened", "device", c.deviceID)
	return nil
}

func (c *Camera) Stop() error {
	if c.cap == nil {
		return nil
	}
	err := c.cap.Close()
	c.cap = nil
	if err != nil {
		return &spectro.CameraError{Op: "close", Err: err}
	}
	return nil
}

func (c *Camera) CaptureFrame() (image.Image, error) {
	if c.cap == nil {
		return nil, &spectro.CameraError{Op: "read", Err: errors.New("camera not started")}
	}
	mat := gocv.NewMat()
	defer mat.Close()
	if ok := c.cap.Read(&mat); !ok || mat.Empty() {
		return nil, &spectro.CameraError{Op: "read", Err: errors.New("no frame from device")}
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, &spectro.CameraError{Op: "convert", Err: err}
	}
	return img, nil
}

package spectro

import "fmt"

// AcquisitionError reports a failed spectrometer read: device missing,
// unplugged mid-session, or a bus timeout. The tick loop recovers by
// skipping the tick.
type AcquisitionError struct {
	Op  string
	Err error
}

func (e *AcquisitionError) Error() string { return fmt.Sprintf("acquisition: %s: %v", e.Op, e.Err) }
func (e *AcquisitionError) Unwrap() error { return e.Err }

// CameraError reports a failed camera operation. The tick loop recovers by
// dropping the in-progress photo and falling back to idle.
type CameraError struct {
	Op  string
	Err error
}

func (e *CameraError) Error() string { return fmt.Sprintf("camera: %s: %v", e.Op, e.Err) }
func (e *CameraError) Unwrap() error { return e.Err }

// PersistenceError reports a failed save. The machine stays in the pre-save
// sub-mode so the user can retry.
type PersistenceError struct {
	ID  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persist %s: %v", e.ID, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// HardwareInitError is fatal: a collaborator could not be brought up before
// the loop started. It is surfaced to the process entry point, never handled
// by the tick loop.
type HardwareInitError struct {
	Component string
	Err       error
}

func (e *HardwareInitError) Error() string {
	return fmt.Sprintf("hardware init: %s: %v", e.Component, e.Err)
}
func (e *HardwareInitError) Unwrap() error { return e.Err }

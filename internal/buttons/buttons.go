// Package buttons reads the three panel buttons through periph.io GPIO with
// time-threshold debouncing. Wiring is active-low with internal pull-ups.
package buttons

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/roboticsmick/spectro"
)

const defaultDebounce = 20 * time.Millisecond

type pinState struct {
	pin     gpio.PinIO
	raw     bool // last raw pressed reading
	stable  bool // debounced pressed level
	changed time.Time
}

type Buttons struct {
	pins     map[spectro.Button]*pinState
	debounce time.Duration
	now      func() time.Time
}

var _ spectro.InputPort = (*Buttons)(nil)

// New configures the three pins as pulled-up inputs.
func New(b1, b2, b3 gpio.PinIO, debounce time.Duration) (*Buttons, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	b := &Buttons{
		pins: map[spectro.Button]*pinState{
			spectro.ButtonAction: {pin: b1},
			spectro.ButtonSave:   {pin: b2},
			spectro.ButtonBack:   {pin: b3},
		},
		debounce: debounce,
		now:      time.Now,
	}
	for btn, ps := range b.pins {
		if ps.pin == nil {
			return nil, fmt.Errorf("buttons: %s pin not wired", btn)
		}
		if err := ps.pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("buttons: configure %s: %w", btn, err)
		}
	}
	return b, nil
}

// IsPressed reports the debounced level: a raw change only becomes visible
// after it has held steady for the debounce window.
func (b *Buttons) IsPressed(btn spectro.Button) bool {
	ps := b.pins[btn]
	if ps == nil {
		return false
	}
	raw := ps.pin.Read() == gpio.Low
	now := b.now()
	if raw != ps.raw {
		ps.raw = raw
		ps.changed = now
		return ps.stable
	}
	if now.Sub(ps.changed) >= b.debounce {
		ps.stable = raw
	}
	return ps.stable
}

package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/roboticsmick/spectro"
	"github.com/roboticsmick/spectro/internal/buttons"
	"github.com/roboticsmick/spectro/internal/camera"
	"github.com/roboticsmick/spectro/internal/epd"
	"github.com/roboticsmick/spectro/internal/oceanusb"
	"github.com/roboticsmick/spectro/internal/record"
	"github.com/roboticsmick/spectro/internal/sim"
)

var simMode bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the instrument loop until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg, err := spectro.LoadConfig(cfgPath)
		if err != nil {
			return err
		}

		deps, cleanup, err := buildDeps(cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		rig, err := spectro.New(cfg, deps)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return rig.Run(ctx)
	},
}

func init() {
	runCmd.Flags().BoolVar(&simMode, "sim", false, "use simulated hardware")
	rootCmd.AddCommand(runCmd)
}

// buildDeps wires the hardware collaborators, or their simulated twins.
func buildDeps(cfg spectro.Config, logger *slog.Logger) (spectro.Deps, func(), error) {
	writer, err := record.NewWriter(cfg.OutputDir, nil, logger)
	if err != nil {
		return spectro.Deps{}, nil, err
	}

	if simMode {
		deps := spectro.Deps{
			Source:  sim.NewSource(time.Now().UnixNano()),
			Display: sim.NewDisplay(250, 122),
			Input:   sim.NewInput(),
			Writer:  writer,
			Logger:  logger,
		}
		if cfg.CameraEnabled {
			deps.Camera = sim.NewCamera()
		}
		return deps, func() {}, nil
	}

	if _, err := host.Init(); err != nil {
		return spectro.Deps{}, nil, &spectro.HardwareInitError{Component: "host", Err: err}
	}

	spiPort, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return spectro.Deps{}, nil, &spectro.HardwareInitError{Component: "spi", Err: err}
	}

	var backlight gpio.PinOut
	if cfg.Pins.Backlight != "" {
		backlight = gpioreg.ByName(cfg.Pins.Backlight)
	}
	display, err := epd.New(spiPort, &epd.Opts{Backlight: backlight, Rotate: true})
	if err != nil {
		spiPort.Close()
		return spectro.Deps{}, nil, &spectro.HardwareInitError{Component: "display", Err: err}
	}

	var pins [3]gpio.PinIO
	for i, name := range []string{cfg.Pins.Button1, cfg.Pins.Button2, cfg.Pins.Button3} {
		if pins[i] = gpioreg.ByName(name); pins[i] == nil {
			spiPort.Close()
			return spectro.Deps{}, nil, &spectro.HardwareInitError{
				Component: "buttons", Err: fmt.Errorf("no such pin %q", name)}
		}
	}
	input, err := buttons.New(pins[0], pins[1], pins[2], 0)
	if err != nil {
		spiPort.Close()
		return spectro.Deps{}, nil, &spectro.HardwareInitError{Component: "buttons", Err: err}
	}

	source, err := oceanusb.Open(logger)
	if err != nil {
		spiPort.Close()
		return spectro.Deps{}, nil, &spectro.HardwareInitError{Component: "spectrometer", Err: err}
	}

	deps := spectro.Deps{
		Source:  source,
		Display: display,
		Input:   input,
		Writer:  writer,
		Logger:  logger,
	}
	if cfg.CameraEnabled {
		deps.Camera = camera.New(cfg.CameraDevice, logger)
	}
	cleanup := func() { spiPort.Close() }
	return deps, cleanup, nil
}

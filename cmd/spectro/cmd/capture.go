package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roboticsmick/spectro"
	"github.com/roboticsmick/spectro/internal/oceanusb"
	"github.com/roboticsmick/spectro/internal/record"
	"github.com/roboticsmick/spectro/internal/sim"
)

var (
	captureSim     bool
	captureTimeout time.Duration
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Acquire a single spectrum and persist it",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg, err := spectro.LoadConfig(cfgPath)
		if err != nil {
			return err
		}

		var source spectro.SampleSource
		if captureSim {
			source = sim.NewSource(time.Now().UnixNano())
		} else {
			source, err = oceanusb.Open(logger)
			if err != nil {
				return &spectro.HardwareInitError{Component: "spectrometer", Err: err}
			}
		}
		defer source.Close()

		if err := source.SetIntegrationTime(cfg.IntegrationTimeMicros); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), captureTimeout)
		defer cancel()

		sp, err := source.Acquire(ctx)
		if err != nil {
			return err
		}

		writer, err := record.NewWriter(cfg.OutputDir, nil, logger)
		if err != nil {
			return err
		}
		rec := spectro.Record{
			Timestamp:             time.Now().UTC().Truncate(time.Second),
			Spectrum:              sp,
			IntegrationTimeMicros: cfg.IntegrationTimeMicros,
		}
		if cfg.Geo.Enabled {
			rec.Latitude = cfg.Geo.Latitude
			rec.Longitude = cfg.Geo.Longitude
		}
		id, err := writer.Persist(ctx, rec)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	captureCmd.Flags().BoolVar(&captureSim, "sim", false, "use a simulated spectrometer")
	captureCmd.Flags().DurationVar(&captureTimeout, "timeout", 10*time.Second, "acquisition timeout")
	rootCmd.AddCommand(captureCmd)
}

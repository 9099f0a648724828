package main

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/orchestrator"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/watchdog"
)

// newReconcileCommand runs a single watchdog sweep, for use after a crash
// when the server is not running.
func newReconcileCommand(opts *rootOptions) *cobra.Command {
	var staleAfter time.Duration

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Re-arm algorithms whose cooldown re-arm is overdue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("stale-after") {
				staleAfter = cfg.Orchestrator.StaleAfter
			}
			if staleAfter <= 0 {
				return errors.New("stale-after must be positive")
			}

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			gw, producer, err := newGateway(cfg, db)
			if err != nil {
				return err
			}
			if producer != nil {
				defer producer.Close()
			}

			rearmer := orchestrator.NewRearmer(db, gw)
			n, err := watchdog.New(db, rearmer, time.Minute, staleAfter).Sweep(cmd.Context())
			if err != nil {
				return err
			}
			log.Info().Int("rearmed", n).Dur("stale_after", staleAfter).Msg("Reconcile finished")
			return nil
		},
	}

	cmd.Flags().DurationVar(&staleAfter, "stale-after", 0, "how long a re-arm may be overdue (overrides orchestrator.stale_after)")
	return cmd
}

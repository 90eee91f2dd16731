package commands

import (
	"github.com/spf13/cobra"

	"github.com/maltedev/tramite-watcher/internal/models"
	"github.com/maltedev/tramite-watcher/internal/watcher"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Runs one status check and notifies if the status changed since the last run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx := cmd.Context()

		ext, err := buildExtractor(cfg, logger)
		if err != nil {
			return err
		}

		store, closeStore, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		notifier, closeNotifier, err := buildNotifier(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeNotifier()

		w := watcher.New(watcher.Config{
			TrackingID: models.TrackingID(cfg.Tramite.ID),
			SiteURL:    cfg.Tramite.SiteURL,
		}, ext, store, notifier, logger)

		outcome, err := w.Run(ctx)
		if err != nil {
			return err
		}

		logger.Info("check finished", "outcome", outcome, "strategies", ext.Strategies())
		return nil
	},
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chaos-io/nobg/watch"
)

func newWatchCmd(app *appContext) *cobra.Command {
	var inbox, outbox, schedule, background string
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process new images dropped into a hot folder",
		Example: `  nobg watch --inbox ~/Pictures/in --outbox ~/Pictures/out
  nobg watch --schedule "*/5 * * * *" -b white
  nobg watch --once`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg.Watch
			if inbox != "" {
				cfg.Inbox = inbox
			}
			if outbox != "" {
				cfg.Outbox = outbox
			}
			if schedule != "" {
				cfg.Schedule = schedule
			}
			if background != "" {
				cfg.Background = background
			}
			defer app.Close()

			processor := app.Processor()
			if err := processor.Prepare(cmd.Context()); err != nil {
				return err
			}

			w, err := watch.New(cfg, processor)
			if err != nil {
				return err
			}
			if once {
				_, err := w.Tick(cmd.Context())
				return err
			}
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&inbox, "inbox", "", "Folder to scan (overrides config)")
	cmd.Flags().StringVar(&outbox, "outbox", "", "Folder for results (overrides config)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron schedule, e.g. \"@every 30s\" (overrides config)")
	cmd.Flags().StringVarP(&background, "background", "b", "", "Background (overrides config)")
	cmd.Flags().BoolVar(&once, "once", false, "Scan once and exit")
	return cmd
}

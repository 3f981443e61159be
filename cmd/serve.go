package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chaos-io/nobg/server"
)

func newServeCmd(app *appContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Example: `  nobg serve
  nobg serve --addr :9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				app.cfg.Server.Addr = addr
			}
			defer app.Close()

			processor := app.Processor()
			// 模型缺失时仍然启动，/api/v1/model 会报告原因
			if err := processor.Prepare(cmd.Context()); err != nil {
				slog.Warn("model not loaded", "error", err)
			}

			return server.New(app.cfg, processor, app.Session()).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

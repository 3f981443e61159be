package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	app := &appContext{}

	root := &cobra.Command{
		Use:   "nobg",
		Short: "Remove image backgrounds with the RMBG-1.4 segmentation model",
		Long: `nobg removes the background of photos with a segmentation model and composites the
foreground over a transparent, white, black or custom colour background.

It can process single files or URLs, whole batches, serve an HTTP API, or watch a hot folder.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env 不存在时忽略
			_ = godotenv.Load()
			if cmd.Annotations[skipConfigLoad] == "true" {
				return nil
			}
			return app.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&app.configPath, "config", "c", "", "Configuration file path")
	flags.StringVar(&app.modelPath, "model", "", "Path to model.onnx (overrides config)")
	flags.StringVar(&app.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(newRemoveCmd(app))
	root.AddCommand(newBatchCmd(app))
	root.AddCommand(newModelCmd(app))
	root.AddCommand(newServeCmd(app))
	root.AddCommand(newWatchCmd(app))
	root.AddCommand(newConfigCmd(app))

	return root
}

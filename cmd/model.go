package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chaos-io/nobg/config"
	"github.com/chaos-io/nobg/rembg"
)

func newModelCmd(app *appContext) *cobra.Command {
	modelCmd := &cobra.Command{
		Use:   "model",
		Short: "Model utilities",
	}
	modelCmd.AddCommand(newModelCheckCmd(app))
	return modelCmd
}

func newModelCheckCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the model is available",
		Long: `For the onnx engine, checks that model.onnx exists at the configured path.
For the remote engine, checks that the inference server is ready.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			m := app.cfg.Model

			if m.Engine == config.EngineRemote {
				defer app.Close()
				if err := app.Session().Init(cmd.Context(), m.RemoteModel); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "remote model %q ready at %s\n", m.RemoteModel, m.RemoteURL)
				return nil
			}

			info, err := rembg.CheckModel(m.Path)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "model found at %s (%d bytes)\n", info.Path, info.Size)
			return nil
		},
	}
}

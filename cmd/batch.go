package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chaos-io/nobg/apperr"
	"github.com/chaos-io/nobg/batch"
	"github.com/chaos-io/nobg/compose"
	"github.com/chaos-io/nobg/imaging"
)

func newBatchCmd(app *appContext) *cobra.Command {
	var dir, background string
	var crop bool
	var padding int

	cmd := &cobra.Command{
		Use:   "batch <file|url>...",
		Short: "Remove backgrounds of several images, in order",
		Long: `Processes every input in order and writes <name>_nobg.png into the output directory,
creating it when missing. Inputs sharing a name get a -1, -2... suffix.
A failing input is reported and skipped; the command only fails when the model cannot be loaded.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bg, err := compose.ParseBackground(background)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return apperr.Wrap(apperr.Io, err, "create output directory "+dir)
			}

			sources := make([]imaging.Source, 0, len(args))
			for _, arg := range args {
				sources = append(sources, sourceFor(arg))
			}

			var names imaging.OutputNames
			rows := make([][]string, 0, len(sources))
			err = app.Processor(processorOptions(crop, padding)...).Run(cmd.Context(), sources, bg, func(p batch.Progress) {
				status, detail := p.State().String(), p.Error
				if p.State() == batch.Completed {
					dest := filepath.Join(dir, names.Next(p.Name))
					if werr := imaging.WritePNG(p.Output.PNG, dest); werr != nil {
						status, detail = batch.Failed.String(), werr.Error()
					} else {
						detail = dest
					}
				}
				slog.Info("batch item", "index", p.Index+1, "total", p.Total, "name", p.Name, "status", status)
				rows = append(rows, []string{strconv.Itoa(p.Index + 1), p.Name, status, detail})
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Name", "Status", "Output / Error"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&crop, "crop", false, "Crop the result to the subject")
	cmd.Flags().IntVar(&padding, "padding", 16, "Margin in pixels kept around the subject with --crop")
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Output directory")
	cmd.Flags().StringVarP(&background, "background", "b", "transparent", "Background: transparent, white, black or #rrggbb")
	return cmd
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chaos-io/nobg/batch"
	"github.com/chaos-io/nobg/compose"
	"github.com/chaos-io/nobg/imaging"
	"github.com/chaos-io/nobg/util"
)

func newRemoveCmd(app *appContext) *cobra.Command {
	var output, background string
	var crop bool
	var padding int

	cmd := &cobra.Command{
		Use:   "remove <file|url>",
		Short: "Remove the background of a single image",
		Example: `  nobg remove photo.jpg
  nobg remove https://example.com/cat.webp -o cat.png -b white
  nobg remove logo.svg -b "#336699"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bg, err := compose.ParseBackground(background)
			if err != nil {
				return err
			}
			defer app.Close()

			src := sourceFor(args[0])
			res, err := app.Processor(processorOptions(crop, padding)...).ProcessOne(cmd.Context(), src, bg)
			if err != nil {
				return err
			}

			dest := output
			if dest == "" {
				dest = imaging.OutputName(src.DisplayName())
			}
			if err := imaging.WritePNG(res.PNG, dest); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), dest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&crop, "crop", false, "Crop the result to the subject")
	cmd.Flags().IntVar(&padding, "padding", 16, "Margin in pixels kept around the subject with --crop")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output PNG path (default <name>_nobg.png)")
	cmd.Flags().StringVarP(&background, "background", "b", "transparent", "Background: transparent, white, black or #rrggbb")
	return cmd
}

func processorOptions(crop bool, padding int) []batch.Option {
	if !crop {
		return nil
	}
	return []batch.Option{batch.WithCrop(padding)}
}

func sourceFor(arg string) imaging.Source {
	if util.IsURL(arg) {
		return imaging.FromURL(arg)
	}
	return imaging.FromPath(arg)
}

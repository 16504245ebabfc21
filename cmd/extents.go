package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-dvdread/pkg/app"
	"github.com/deploymenttheory/go-dvdread/pkg/app/extents"
)

var outputFormat string

var extentsCmd = &cobra.Command{
	Use:   "extents <src>",
	Short: "List the DVD-Video files of a disc and the sectors they occupy",
	Long: `List the video manager and title set files found under /VIDEO_TS together
with their role and sector range. These ranges decide where the dump reads
through the content key and which sectors carry the region mask.`,
	Example: `  go-dvdread extents /dev/sr0
  go-dvdread extents movie.iso -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtents(cmd, args[0])
	},
}

func init() {
	extentsCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
}

func runExtents(cmd *cobra.Command, source string) error {
	if err := extents.ValidateFormat(outputFormat); err != nil {
		return err
	}

	ctx, closer, err := newContext(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	response, err := extents.Handle(ctx, &extents.Request{Source: source})
	if err != nil {
		return err
	}
	if err := extents.FormatOutput(ctx.Output, response, outputFormat); err != nil {
		return app.NewError(app.ErrCodeWriteFailed, "can't write listing", err)
	}
	return nil
}

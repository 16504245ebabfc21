package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-dvdread/internal/config"
	"github.com/deploymenttheory/go-dvdread/pkg/app"
	"github.com/deploymenttheory/go-dvdread/pkg/app/dump"
)

// Exit codes
const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

var (
	// Global flags
	configFile string
	verbose    bool
	quiet      bool
	progress   string
	logFile    string

	// Dump flags
	summaryFormat string
	digest        bool
	readRetries   uint
)

var rootCmd = &cobra.Command{
	Use:   "go-dvdread <src> [<start> [<end>]]",
	Short: "Copy a DVD-Video disc or image sector by sector",
	Long: `go-dvdread copies the sectors of a DVD-Video disc or disc image to standard
output, reading the title content through its content key and substituting
zeros for sectors that cannot be read.

Progress is written to standard error as sector ranges together with the
file each range belongs to. The optional start and end arguments select the
half-open sector range [start, end) to copy.`,
	Example: `  go-dvdread /dev/sr0 >/tmp/decss.iso
  go-dvdread cssed.iso >decss.iso
  go-dvdread --summary json movie.iso 0 1024 >head.iso`,
	Version:       "0.1.0-dev",
	Args:          cobra.RangeArgs(1, 3),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDump(cmd, args[0], args[1:])
	},
}

// Execute adds all child commands to the root command and exits with the
// status of the command that ran.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetErr(stderr)

	cmd, err := rootCmd.ExecuteC()
	if err == nil {
		return exitOK
	}

	var ce *app.CommonError
	if errors.As(err, &ce) {
		switch ce.Code {
		case app.ErrCodeInvalidInput:
			fmt.Fprintf(stderr, "Error: %v\n", err)
			fmt.Fprint(stderr, cmd.UsageString())
			return exitUsage
		case app.ErrCodeConfig, app.ErrCodeInternal:
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		// Open, seek and write failures were already reported in the diagnostics.
		return exitFatal
	}

	// Argument count and flag errors from cobra
	fmt.Fprintf(stderr, "Error: %v\n", err)
	fmt.Fprint(stderr, cmd.UsageString())
	return exitUsage
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file (default: dvdread-config.yaml in ., ./config, $HOME/.dvdread, /etc/dvdread)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "write structured logs to standard error")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress structured logs on standard error")
	rootCmd.PersistentFlags().StringVar(&progress, "progress", "", "progress display (auto, always, never)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "append structured logs to a rotating file")

	rootCmd.Flags().StringVar(&summaryFormat, "summary", "", "print a transfer summary to standard error (table, json, yaml)")
	rootCmd.Flags().BoolVar(&digest, "digest", false, "compute a BLAKE2b-256 digest of the written image")
	rootCmd.Flags().UintVar(&readRetries, "read-retries", 0, "attempts per sector before zeros are substituted (default from config: 1)")

	rootCmd.AddCommand(extentsCmd)
}

// newContext loads the configuration, applies flag overrides and builds the
// application context. The returned closer releases the log file.
func newContext(cmd *cobra.Command) (*app.Context, io.Closer, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, app.NewError(app.ErrCodeConfig, "invalid configuration", err)
	}

	if progress != "" {
		cfg.Progress.Interactive = progress
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	if cmd.Flags().Changed("read-retries") {
		cfg.Read.Retries = readRetries
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, app.NewError(app.ErrCodeConfig, "invalid configuration", err)
	}

	ctx := app.NewContext()
	ctx.Verbose = verbose
	ctx.Quiet = quiet
	ctx.Diagnostics = cmd.ErrOrStderr()
	ctx.Output = cmd.OutOrStdout()
	closer := ctx.Configure(cfg)
	return ctx, closer, nil
}

func runDump(cmd *cobra.Command, source string, bounds []string) error {
	if err := dump.ValidateSummaryFormat(summaryFormat); err != nil {
		return err
	}

	ctx, closer, err := newContext(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	request := &dump.Request{
		Source: source,
		Bounds: bounds,
		Digest: digest,
	}

	response, err := dump.Handle(ctx, request)
	if summaryFormat != "" && response != nil {
		if ferr := dump.FormatSummary(ctx.Diagnostics, response, summaryFormat); ferr != nil {
			ctx.Logger.Warn("Failed to format summary", "error", ferr)
		}
	}
	return err
}

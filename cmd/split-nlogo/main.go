package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/nvandessel/split-nlogo/internal/config"
	"github.com/nvandessel/split-nlogo/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run executes the command line args and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return reportError(stderr, err)
	}
	return 0
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "split-nlogo --nlogo_file FILE (--experiment NAME... | --all_experiments) [flags]",
		Short: "Split NetLogo BehaviorSpace experiments into individual runs",
		Long: `split-nlogo expands the BehaviorSpace experiments of a NetLogo model
into one setup file per parameter combination, so the runs can be
distributed over a cluster.

Every value set with more than one value is expanded; the cartesian product
of all of them gives the runs. Repetitions can additionally be split over
several runs with --repetitions_per_run. Optionally a job script is rendered
per experiment from a template, and a CSV table maps run numbers to
parameter values.`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, args)
			if err != nil {
				return err
			}

			level := cfg.LogLevel
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				level = "debug"
			}
			logger := logging.NewConsoleLogger(level, cmd.OutOrStdout(), cmd.ErrOrStderr())
			logger.Debug("configuration", "config", fmt.Sprintf("%+v", *cfg))

			return runSplit(cmd.Context(), cfg, logger)
		},
	}
	rootCmd.SetVersionTemplate("split-nlogo version {{.Version}}\n")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := rootCmd.Flags()
	flags.StringP("nlogo_file", "n", "", "NetLogo .nlogo file with the original experiment")
	flags.StringArrayP("experiment", "e", nil, "Name of an experiment in the nlogo file to expand; repeat -e for several. Further names may follow as arguments, except names equal to a subcommand (list, version), which need -e")
	flags.BoolP("all_experiments", "a", false, "Expand all experiments in the nlogo file")
	flags.Int("repetitions_per_run", 1, "Number of repetitions per generated run; the experiment's repetitions are split over N/n runs (<= 0 disables splitting)")
	flags.String("output_dir", ".", "Directory for the generated setup files and run tables")
	flags.String("output_prefix", "", "Prefix for the names of all generated files")
	flags.String("create_script", "", "Render a job script per experiment from this template file")
	flags.String("script_output_dir", "", "Directory for generated scripts (default: --output_dir)")
	flags.String("csv_output_dir", "", "Directory scripts direct simulation table output to (default: --output_dir)")
	flags.Bool("create_run_table", false, "Write a CSV table of run numbers and parameter values per experiment")
	flags.Bool("no_path_translation", false, "Keep the given paths as they are instead of making them absolute")
	flags.String("run_db", "", "Record every generated run in this SQLite database")
	flags.String("config", "", "YAML configuration file")
	flags.BoolP("debug", "d", false, "Print debugging information")

	rootCmd.AddCommand(
		newVersionCmd(),
		newListCmd(),
	)

	return rootCmd
}

// buildConfig layers defaults, the --config file, SPLIT_NLOGO_* environment
// variables and explicitly set flags, in that order, and validates the
// result.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flags.Changed("nlogo_file") {
		cfg.NlogoFile, _ = flags.GetString("nlogo_file")
	}
	// A selection on the command line replaces the file's selection as a
	// whole; giving both on the command line is still an error.
	namesSet := flags.Changed("experiment") || len(args) > 0
	allSet := flags.Changed("all_experiments")
	if namesSet {
		names, _ := flags.GetStringArray("experiment")
		cfg.Experiments = append(names, args...)
		if !allSet {
			cfg.AllExperiments = false
		}
	}
	if allSet {
		cfg.AllExperiments, _ = flags.GetBool("all_experiments")
		if !namesSet {
			cfg.Experiments = nil
		}
	}
	if flags.Changed("repetitions_per_run") {
		cfg.RepetitionsPerRun, _ = flags.GetInt("repetitions_per_run")
	}
	if flags.Changed("output_dir") {
		cfg.OutputDir, _ = flags.GetString("output_dir")
	}
	if flags.Changed("output_prefix") {
		cfg.OutputPrefix, _ = flags.GetString("output_prefix")
	}
	if flags.Changed("create_script") {
		cfg.ScriptTemplate, _ = flags.GetString("create_script")
	}
	if flags.Changed("script_output_dir") {
		cfg.ScriptOutputDir, _ = flags.GetString("script_output_dir")
	}
	if flags.Changed("csv_output_dir") {
		cfg.CSVOutputDir, _ = flags.GetString("csv_output_dir")
	}
	if flags.Changed("create_run_table") {
		cfg.CreateRunTable, _ = flags.GetBool("create_run_table")
	}
	if flags.Changed("no_path_translation") {
		cfg.NoPathTranslation, _ = flags.GetBool("no_path_translation")
	}
	if flags.Changed("run_db") {
		cfg.RunDB, _ = flags.GetString("run_db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, &usageError{err: err}
	}
	return cfg, nil
}

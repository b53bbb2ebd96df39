package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nvandessel/split-nlogo/internal/expand"
	"github.com/nvandessel/split-nlogo/internal/ledger"
	"github.com/nvandessel/split-nlogo/internal/logging"
	"github.com/nvandessel/split-nlogo/internal/nlogo"
	"github.com/nvandessel/split-nlogo/internal/sanitize"
	"github.com/spf13/cobra"
)

// experimentSummary is one entry of the list output.
type experimentSummary struct {
	Name              string   `json:"name"`
	Variables         []string `json:"variables"`
	Fixed             int      `json:"fixed_value_sets"`
	Combinations      int      `json:"combinations"`
	Repetitions       int      `json:"repetitions"`
	RepetitionsPerRun int      `json:"repetitions_per_run"`
	Runs              int      `json:"runs"`

	Ledger *ledgerEntry `json:"ledger,omitempty"`
}

// ledgerEntry is what a run ledger holds for an experiment.
type ledgerEntry struct {
	Found     bool   `json:"found"`
	Runs      int    `json:"runs"`
	ModelFile string `json:"model_file,omitempty"`
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the experiments of a model and the runs they would produce",
		Long: `List every BehaviorSpace experiment in a NetLogo model with its varying
variables and the number of runs a split would produce. With --run_db the
runs recorded by an earlier split are shown next to each experiment.
Nothing is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("nlogo_file")
			repsPerRun, _ := cmd.Flags().GetInt("repetitions_per_run")
			jsonOut, _ := cmd.Flags().GetBool("json")
			dbPath, _ := cmd.Flags().GetString("run_db")

			experiments, err := nlogo.Load(path)
			if err != nil {
				return err
			}

			var db *ledger.Ledger
			if dbPath != "" {
				// Listing never creates a ledger.
				if _, err := os.Stat(dbPath); err != nil {
					return err
				}
				if db, err = ledger.Open(cmd.Context(), dbPath); err != nil {
					return err
				}
				defer db.Close()
			}

			logger := logging.NewConsoleLogger("info", cmd.OutOrStdout(), cmd.ErrOrStderr())
			expander := expand.New(repsPerRun, logger)

			summaries := make([]experimentSummary, 0, len(experiments))
			for _, exp := range experiments {
				plan, err := expander.Plan(exp)
				if err != nil {
					return err
				}
				summary := experimentSummary{
					Name:              exp.Name,
					Variables:         plan.Variables(),
					Fixed:             plan.Fixed,
					Combinations:      plan.Combinations,
					Repetitions:       plan.Repetitions.Original,
					RepetitionsPerRun: plan.Repetitions.InExperiment,
					Runs:              plan.TotalRuns,
				}
				if db != nil {
					recorded, found, err := db.Lookup(cmd.Context(), exp.Name)
					if err != nil {
						return err
					}
					summary.Ledger = &ledgerEntry{Found: found}
					if found {
						summary.Ledger.Runs = len(recorded.Runs)
						summary.Ledger.ModelFile = recorded.ModelFile
					}
				}
				summaries = append(summaries, summary)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"model":       path,
					"experiments": summaries,
				})
			}
			printSummaries(cmd.OutOrStdout(), summaries)
			return nil
		},
	}

	cmd.Flags().StringP("nlogo_file", "n", "", "NetLogo .nlogo file to inspect")
	cmd.Flags().Int("repetitions_per_run", 1, "Repetitions per run to compute run counts for")
	cmd.Flags().Bool("json", false, "Output as JSON")
	cmd.Flags().String("run_db", "", "Show what this run ledger recorded for each experiment")
	cmd.MarkFlagRequired("nlogo_file")

	return cmd
}

func printSummaries(w io.Writer, summaries []experimentSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No experiments found.")
		return
	}

	for i, s := range summaries {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s\n", sanitize.StripControlChars(s.Name))

		vars := "(none)"
		if len(s.Variables) > 0 {
			clean := make([]string, len(s.Variables))
			for j, v := range s.Variables {
				clean[j] = sanitize.StripControlChars(v)
			}
			vars = strings.Join(clean, ", ")
		}
		fmt.Fprintf(w, "  variables:    %s\n", vars)
		fmt.Fprintf(w, "  fixed sets:   %d\n", s.Fixed)
		fmt.Fprintf(w, "  combinations: %d\n", s.Combinations)
		fmt.Fprintf(w, "  repetitions:  %d (%d per run)\n", s.Repetitions, s.RepetitionsPerRun)
		fmt.Fprintf(w, "  runs:         %d\n", s.Runs)
		if s.Ledger != nil {
			if s.Ledger.Found {
				fmt.Fprintf(w, "  recorded:     %d runs from %s\n", s.Ledger.Runs, sanitize.StripControlChars(s.Ledger.ModelFile))
			} else {
				fmt.Fprintln(w, "  recorded:     (none)")
			}
		}
	}
}

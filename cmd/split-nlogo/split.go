package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nvandessel/split-nlogo/internal/config"
	"github.com/nvandessel/split-nlogo/internal/expand"
	"github.com/nvandessel/split-nlogo/internal/ledger"
	"github.com/nvandessel/split-nlogo/internal/naming"
	"github.com/nvandessel/split-nlogo/internal/nlogo"
	"github.com/nvandessel/split-nlogo/internal/pathutil"
	"github.com/nvandessel/split-nlogo/internal/script"
)

// splitter holds everything resolved once per invocation.
type splitter struct {
	cfg      *config.Config
	logger   *slog.Logger
	policy   naming.Policy
	model    string
	csvDir   string
	template *script.Template
	ledger   *ledger.Ledger
	expander *expand.Expander
}

// runSplit expands the selected experiments of cfg.NlogoFile. Each
// experiment is finished (run files, run table, script, ledger entry)
// before the next one starts; the first error aborts the whole command and
// files already written are left in place.
func runSplit(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tr := pathutil.Translator{Disabled: cfg.NoPathTranslation}

	outDir, err := tr.Resolve(cfg.OutputDir)
	if err != nil {
		return err
	}
	scriptDir, err := tr.Resolve(cfg.ScriptDir())
	if err != nil {
		return err
	}
	csvDir, err := tr.Resolve(cfg.CSVDir())
	if err != nil {
		return err
	}
	model, err := tr.Resolve(cfg.NlogoFile)
	if err != nil {
		return err
	}

	experiments, err := nlogo.Load(cfg.NlogoFile)
	if err != nil {
		return err
	}

	s := &splitter{
		cfg:    cfg,
		logger: logger,
		policy: naming.Policy{
			OutputDir: outDir,
			ScriptDir: scriptDir,
			Prefix:    cfg.OutputPrefix,
		},
		model:    model,
		csvDir:   csvDir,
		expander: expand.New(cfg.RepetitionsPerRun, logger),
	}

	if cfg.ScriptTemplate != "" {
		if s.template, err = script.Load(cfg.ScriptTemplate); err != nil {
			return err
		}
	}

	if cfg.RunDB != "" {
		if s.ledger, err = ledger.Open(ctx, cfg.RunDB); err != nil {
			return err
		}
		defer s.ledger.Close()
	}

	wanted := make(map[string]bool, len(cfg.Experiments))
	for _, name := range cfg.Experiments {
		wanted[name] = true
	}

	processed := make(map[string]int)
	for _, exp := range experiments {
		if !cfg.AllExperiments && !wanted[exp.Name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		runs, err := s.splitExperiment(ctx, exp)
		if err != nil {
			return err
		}
		processed[exp.Name] = runs
	}

	logger.Debug("processed experiments", "count", len(processed))

	for _, name := range cfg.Experiments {
		if _, ok := processed[name]; !ok {
			logger.Warn("experiment not found in model file",
				"experiment", name,
				"model", cfg.NlogoFile)
		}
	}
	return nil
}

// splitExperiment writes every output of one experiment and returns its
// run count.
func (s *splitter) splitExperiment(ctx context.Context, exp nlogo.Experiment) (int, error) {
	sinks := expand.MultiSink{&expand.DocumentWriter{Policy: s.policy, Logger: s.logger}}
	var rec *ledger.Recorder
	if s.ledger != nil {
		rec = ledger.NewRecorder(s.policy)
		sinks = append(sinks, rec)
	}

	res, err := s.expander.Expand(exp, sinks)
	if err != nil {
		return 0, err
	}

	if s.cfg.CreateRunTable {
		path := s.policy.RunTablePath(exp.Name)
		if err := res.Table.WriteFile(path); err != nil {
			return 0, err
		}
		s.logger.Debug("wrote run table", "experiment", exp.Name, "path", path, "rows", res.Table.Len())
	}

	if s.template != nil {
		path := s.policy.ScriptPath(exp.Name, s.template.Ext())
		unknown, err := s.template.WriteFile(path, script.Vars{
			Model:      s.model,
			ModelName:  pathutil.ModelName(s.model),
			Experiment: exp.Name,
			NumExps:    res.Processed.TotalRuns,
			CSVPath:    s.csvDir,
		})
		if err != nil {
			return 0, err
		}
		for _, key := range unknown {
			s.logger.Warn("unknown placeholder left in script",
				"placeholder", "{"+key+"}",
				"template", s.cfg.ScriptTemplate)
		}
		s.logger.Debug("wrote script", "experiment", exp.Name, "path", path, "numexps", res.Processed.TotalRuns)
	}

	if rec != nil {
		if err := s.ledger.Commit(ctx, rec.Experiment(s.model, res)); err != nil {
			return 0, fmt.Errorf("recording %q in run ledger: %w", exp.Name, err)
		}
		s.logger.Debug("recorded runs", "experiment", exp.Name, "ledger", s.ledger.Path())
	}

	s.logger.Debug("split experiment", "experiment", exp.Name, "runs", res.Processed.TotalRuns)
	return res.Processed.TotalRuns, nil
}

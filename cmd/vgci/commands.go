// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/vgci/ledger"
	"github.com/grailbio/vgci/report"
	"github.com/grailbio/vgci/scenario"
	"v.io/x/lib/cmdline"
)

// setupFlags are shared by every command that loads scenarios.
type setupFlags struct {
	config    *string
	scenarios *string
}

func addSetupFlags(fs *flag.FlagSet) setupFlags {
	return setupFlags{
		config: fs.String("config", "", `Harness configuration. Files ending in .tsv use the
whitespace-separated key/value format; anything else is YAML. Without one the
public baseline and input stores are used.`),
		scenarios: fs.String("scenarios", "", "Comma-separated YAML files of scenarios to register alongside the built-in ones"),
	}
}

// setup loads the configuration and the scenario registry.
func (f setupFlags) setup(ctx context.Context) (scenario.Config, *scenario.Registry, error) {
	cfg := scenario.DefaultConfig
	if *f.config != "" {
		var err error
		if cfg, err = scenario.LoadConfig(ctx, *f.config); err != nil {
			return cfg, nil, err
		}
	}
	r := scenario.Builtin()
	if *f.scenarios != "" {
		for _, path := range strings.Split(*f.scenarios, ",") {
			if err := r.RegisterFile(ctx, path); err != nil {
				return cfg, nil, err
			}
		}
	}
	return cfg, r, nil
}

// newHarness builds a harness for cfg, opening its ledger if one is
// configured. The returned function closes the ledger.
func newHarness(ctx context.Context, cfg scenario.Config) (*scenario.Harness, func(), error) {
	store, err := cfg.NewStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	h := scenario.New(cfg, store)
	if cfg.LedgerPath == "" {
		return h, func() {}, nil
	}
	l, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return nil, nil, err
	}
	h.Ledger = l
	log.Printf("recording run %s in %s", l.RunID(), cfg.LedgerPath)
	return h, func() {
		if err := l.Close(); err != nil {
			log.Error.Printf("close ledger %s: %v", cfg.LedgerPath, err)
		}
	}, nil
}

func newCmdRun() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "run",
		Short:    "Run scenarios and verify them against the baseline",
		ArgsName: "[name...]",
		Long: `
Run runs the named scenarios in order, or every scenario that is not skipped
when no names are given. The exit status is non-zero if any scenario failed
or timed out.`,
	}
	setup := addSetupFlags(&cmd.Flags)
	runSkipped := cmd.Flags.Bool("run-skipped", false, "Run scenarios that are marked as skipped")
	cmd.Runner = cmdline.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		ctx := context.Background()
		cfg, r, err := setup.setup(ctx)
		if err != nil {
			return err
		}
		scenarios, err := selectScenarios(r, argv, *runSkipped)
		if err != nil {
			return err
		}
		h, done, err := newHarness(ctx, cfg)
		if err != nil {
			return err
		}
		defer done()
		h.Out = env.Stdout
		return h.RunAll(ctx, scenarios, *runSkipped)
	})
	return cmd
}

// selectScenarios returns the named scenarios. With no names it returns the
// scenarios that are not skipped, or all of them if runSkipped is set.
func selectScenarios(r *scenario.Registry, names []string, runSkipped bool) ([]scenario.Scenario, error) {
	if len(names) == 0 && runSkipped {
		return r.All(), nil
	}
	return r.Select(names...)
}

func newCmdList() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "list",
		Short: "List the registered scenarios",
	}
	setup := addSetupFlags(&cmd.Flags)
	all := cmd.Flags.Bool("all", false, "Include skipped scenarios")
	cmd.Runner = cmdline.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return fmt.Errorf("list takes no arguments, but got %v", argv)
		}
		_, r, err := setup.setup(context.Background())
		if err != nil {
			return err
		}
		return list(env.Stdout, r, *all)
	})
	return cmd
}

// list writes one line per scenario: name, kind, tag, timeout and the skip
// reason, if any.
func list(w io.Writer, r *scenario.Registry, all bool) error {
	tw := tsv.NewWriter(w)
	for _, s := range r.All() {
		if s.Skip && !all {
			continue
		}
		tag, err := s.Tag()
		if err != nil {
			return err
		}
		tw.WriteString(s.Name)
		tw.WriteString(string(s.Kind))
		tw.WriteString(tag)
		tw.WriteString(s.Timeout.String())
		tw.WriteString(s.SkipReason)
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func newCmdVerify() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "verify",
		Short:    "Verify the results a previous run left in a work directory",
		ArgsName: "name",
	}
	setup := addSetupFlags(&cmd.Flags)
	workDir := cmd.Flags.String("workdir", "", "Work directory of the earlier run (required)")
	cmd.Runner = cmdline.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("verify takes one scenario name, but got %v", argv)
		}
		if *workDir == "" {
			return errors.E(errors.Invalid, "verify: -workdir is required")
		}
		ctx := context.Background()
		cfg, r, err := setup.setup(ctx)
		if err != nil {
			return err
		}
		s, err := r.Lookup(argv[0])
		if err != nil {
			return err
		}
		store, err := cfg.NewStore(ctx)
		if err != nil {
			return err
		}
		h := scenario.New(cfg, store)
		h.Out = env.Stdout
		rep, err := h.Verify(ctx, s, *workDir)
		if rep != nil {
			for _, w := range rep.Warnings {
				log.Printf("%s: warning: %s", s.Name, w)
			}
		}
		return err
	})
	return cmd
}

func newCmdHistory() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "history",
		Short:    "Show the recorded values of a scenario metric",
		ArgsName: "name metric [method]",
		Long: `
History prints the most recent values of a metric from the result ledger,
oldest first. Run-wide metrics such as f1 have no method.`,
	}
	setup := addSetupFlags(&cmd.Flags)
	limit := cmd.Flags.Int("n", 10, "Number of values to show")
	cmd.Runner = cmdline.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 && len(argv) != 3 {
			return fmt.Errorf("history takes a scenario name, a metric and an optional method, but got %v", argv)
		}
		ctx := context.Background()
		cfg, _, err := setup.setup(ctx)
		if err != nil {
			return err
		}
		if cfg.LedgerPath == "" {
			return errors.E(errors.Invalid, "history: the configuration names no ledger")
		}
		l, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			return err
		}
		defer l.Close() // nolint: errcheck
		var method string
		if len(argv) == 3 {
			method = argv[2]
		}
		return history(ctx, env.Stdout, l, argv[0], argv[1], method, *limit)
	})
	return cmd
}

// history writes one line per recorded value: run ID, time, current value,
// baseline and whether the check passed.
func history(ctx context.Context, w io.Writer, l *ledger.Ledger, name, metric, method string, limit int) error {
	entries, err := l.History(ctx, name, metric, method, limit)
	if err != nil {
		return err
	}
	tw := tsv.NewWriter(w)
	for _, e := range entries {
		tw.WriteString(e.RunID)
		tw.WriteString(e.RecordedAt.Format("2006-01-02T15:04:05"))
		tw.WriteString(report.FormatFloat(e.Current))
		tw.WriteString(report.FormatFloat(e.Baseline))
		if e.Passed {
			tw.WriteString("pass")
		} else {
			tw.WriteString("fail")
		}
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package scenario

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/vgci/pipeline"
	"github.com/grailbio/vgci/position"
)

// MinFilteredReads is the number of reads score filtering must remove for
// the filtered tables to be plotted.
const MinFilteredReads = 100

// PlotScripts are the plot-<name>.R scripts drawn for every table.
var PlotScripts = []string{"pr", "qq", "roc"}

type plotTable struct {
	name, suffix string
}

// plots draws precision-recall, QQ and ROC plots into the output store.
// Failures are logged and never fail the scenario.
func (h *Harness) plots(ctx context.Context, l pipeline.Layout, tag, positive, negative string) {
	if err := h.makePlots(ctx, l, tag, positive, negative); err != nil {
		log.Error.Printf("%s: plots: %v", tag, err)
	}
}

// plotTables writes the position tables to plot into the output store and
// returns them with their plot name suffixes.
func plotTables(ctx context.Context, l pipeline.Layout, tag, positive, negative string) ([]plotTable, error) {
	tables := []plotTable{{position.ResultsName, ""}}
	if positive != "" || negative != "" {
		t, err := position.ReadFile(ctx, l.OutFile(tag, position.ResultsName))
		if err != nil {
			return nil, err
		}
		control, noControl := position.PartitionByControl(t, position.DefaultControlInclude, positive, negative)
		if err := noControl.WriteFile(ctx, l.OutFile(tag, position.NoControlName)); err != nil {
			return nil, err
		}
		if err := control.WriteFile(ctx, l.OutFile(tag, position.ControlName)); err != nil {
			return nil, err
		}
		tables = []plotTable{{position.NoControlName, ""}, {position.ControlName, ".control"}}
	}
	for _, t := range tables {
		filtered := position.FilteredName(t.name)
		path := l.OutFile(tag, filtered)
		n, err := position.FilterFile(ctx, l.OutFile(tag, t.name), path)
		if err != nil {
			return nil, err
		}
		if n > MinFilteredReads {
			tables = append(tables, plotTable{filtered, t.suffix + ".primary.filter"})
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Error.Printf("remove %s: %v", path, err)
		}
	}
	return tables, nil
}

func (h *Harness) makePlots(ctx context.Context, l pipeline.Layout, tag, positive, negative string) error {
	tables, err := plotTables(ctx, l, tag, positive, negative)
	if err != nil {
		return err
	}
	outName := l.OutStoreName(tag)
	defer removeScratch(filepath.Join(l.WorkDir, "Rplots.pdf"))
	for _, name := range PlotScripts {
		script := fmt.Sprintf("plot-%s.R", name)
		local := filepath.Join(l.WorkDir, script)
		if err := h.Store.CopyTo(ctx, filepath.Join(h.Config.ScriptDir, script), local); err != nil {
			return errors.E(fmt.Sprintf("plot script %s", script), err)
		}
		for _, t := range tables {
			cmd := pipeline.Command{
				Name: "Rscript",
				Positional: []string{script,
					filepath.Join(outName, t.name),
					filepath.Join(outName, name+t.suffix+".svg")},
				Dir: l.WorkDir,
			}
			if err := h.Runner.Run(ctx, cmd); err != nil {
				removeScratch(local)
				return err
			}
		}
		removeScratch(local)
	}
	return nil
}

func removeScratch(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Error.Printf("remove %s: %v", path, err)
	}
}

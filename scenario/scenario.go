// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package scenario defines the regression tests of the harness and runs
// them. A scenario is either a bakeoff (map and call a platinum sample
// against one graph, then check variant-calling F1) or a mapping evaluation
// (simulate reads from one graph, realign them to several, then check
// accuracy, AUC, max F1 and alignment scores).
package scenario

import (
	"fmt"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/vgci/pipeline"
	"github.com/grailbio/vgci/verify"
)

// Kind selects a scenario's flow.
type Kind string

const (
	// Bakeoff maps and calls NA12878 reads on a bakeoff region and checks
	// the F1 score of the calls.
	Bakeoff Kind = "bakeoff"
	// Mapeval simulates reads and evaluates their realignment.
	Mapeval Kind = "mapeval"
)

const (
	// DefaultAssembly is the reference the 1000 Genomes VCFs are on.
	DefaultAssembly = "hg38"
	// DefaultSimOpts are the simulator options of mapeval scenarios.
	DefaultSimOpts = "-l 150 -p 500 -v 50 -e 0.05 -i 0.01"
	// BakeoffSample is the sample bakeoff reads and truth come from.
	BakeoffSample = "NA12878"
)

// Scenario is one named regression test.
type Scenario struct {
	Name string `yaml:"name"`
	Kind Kind   `yaml:"kind"`
	// Timeout bounds the scenario's wall-clock time, including
	// verification.
	Timeout time.Duration `yaml:"timeout"`
	// Skip excludes the scenario from default runs.
	Skip       bool   `yaml:"skip,omitempty"`
	SkipReason string `yaml:"skip_reason,omitempty"`

	// Region is a bakeoff region (BRCA1, MHC, CHR21, ...).
	Region string `yaml:"region"`
	// Graph is the graph mapped to by a bakeoff, or the graph reads are
	// simulated from by a mapping evaluation.
	Graph string `yaml:"graph"`
	// TagExt distinguishes scenarios that share a region and graph. It is
	// empty or starts with '-'.
	TagExt    string `yaml:"tag_ext,omitempty"`
	Multipath bool   `yaml:"multipath,omitempty"`
	// InputStore overrides the configured input store.
	InputStore string `yaml:"input_store,omitempty"`

	// SkipIndexing makes a bakeoff reuse the prebuilt GCSA index.
	SkipIndexing bool `yaml:"skip_indexing,omitempty"`
	// MiscOpts are extra pipeline arguments, passed verbatim.
	MiscOpts []string `yaml:"misc_opts,omitempty"`

	// Reads is the number of reads to simulate.
	Reads int `yaml:"reads,omitempty"`
	// TestGraphs are realigned to, in order.
	TestGraphs []string `yaml:"test_graphs,omitempty"`
	// ScoreBaseline is a test graph all alignment scores are compared
	// against.
	ScoreBaseline   string `yaml:"score_baseline,omitempty"`
	PositiveControl string `yaml:"positive_control,omitempty"`
	NegativeControl string `yaml:"negative_control,omitempty"`
	// Sample, if set, restricts simulation to the sample's haplotypes.
	Sample string `yaml:"sample,omitempty"`
	// SourcePaths, if set, restricts simulation to the named paths.
	SourcePaths []string `yaml:"source_paths,omitempty"`
	PairedOnly  bool     `yaml:"paired_only,omitempty"`
	Assembly    string   `yaml:"assembly,omitempty"`
	SimOpts     string   `yaml:"sim_opts,omitempty"`
	// SimFASTQ trains the simulator's error model. A relative path is
	// resolved against the input store.
	SimFASTQ string `yaml:"sim_fastq,omitempty"`

	// Thresholds. Zero F1 and worse thresholds take the configured
	// defaults.
	AccThreshold   float64 `yaml:"acc_threshold,omitempty"`
	AUCThreshold   float64 `yaml:"auc_threshold,omitempty"`
	F1Threshold    float64 `yaml:"f1_threshold,omitempty"`
	WorseThreshold float64 `yaml:"worse_threshold,omitempty"`
}

// withDefaults fills in unset optional fields.
func (s Scenario) withDefaults() Scenario {
	if s.Kind == Mapeval {
		if s.Assembly == "" {
			s.Assembly = DefaultAssembly
		}
		if s.SimOpts == "" {
			s.SimOpts = DefaultSimOpts
		}
	}
	return s
}

// Tag names the scenario's job and output stores.
func (s Scenario) Tag() (string, error) {
	if s.Kind == Bakeoff {
		return pipeline.BakeoffTag(s.Region, s.Graph, s.TagExt)
	}
	return pipeline.SimTag(s.Region, s.Graph, s.TagExt)
}

// Thresholds returns the scenario's tolerances, with unset F1 and worse
// thresholds taken from defaults.
func (s Scenario) Thresholds(defaults verify.Thresholds) verify.Thresholds {
	th := verify.Thresholds{F1: s.F1Threshold, Worse: s.WorseThreshold, Acc: s.AccThreshold, AUC: s.AUCThreshold}
	if th.F1 == 0 {
		th.F1 = defaults.F1
	}
	if th.Worse == 0 {
		th.Worse = defaults.Worse
	}
	return th
}

func (s Scenario) invalid(format string, args ...interface{}) error {
	return errors.E(errors.Invalid, fmt.Sprintf("scenario %q: %s", s.Name, fmt.Sprintf(format, args...)))
}

// Validate checks that the scenario can be run.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return errors.E(errors.Invalid, "scenario without a name")
	}
	if s.Region == "" || s.Graph == "" {
		return s.invalid("region and graph are required")
	}
	if s.Timeout <= 0 {
		return s.invalid("timeout must be positive")
	}
	if _, err := s.Tag(); err != nil {
		return s.invalid("%v", err)
	}
	_, _, known := pipeline.Coords(s.Region)
	switch s.Kind {
	case Bakeoff:
		if !known {
			return s.invalid("bakeoff region %s has no reference coordinates", s.Region)
		}
	case Mapeval:
		if s.Reads <= 0 {
			return s.invalid("reads must be positive")
		}
		if len(s.TestGraphs) == 0 {
			return s.invalid("test_graphs is required")
		}
		if s.Sample != "" && len(s.SourcePaths) > 0 {
			return s.invalid("sample and source_paths are mutually exclusive")
		}
		if s.Sample != "" && !known {
			return s.invalid("threads of region %s cannot be named without its chromosome", s.Region)
		}
	default:
		return s.invalid("unknown kind %q", s.Kind)
	}
	for _, th := range []float64{s.AccThreshold, s.AUCThreshold, s.F1Threshold, s.WorseThreshold} {
		if th < 0 {
			return s.invalid("thresholds must not be negative")
		}
	}
	return nil
}

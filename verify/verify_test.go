// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package verify

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/vgci/stats"
)

var mapevalBaseline = stats.Table{"snp1kg": {1000, 0.90, 0.80, 0.5, 0.85}}

func failed(r *Report) []string {
	var names []string
	for _, m := range r.Failures() {
		names = append(names, m.Method+" "+m.Metric)
	}
	return names
}

func TestCheckMapevalPasses(t *testing.T) {
	r := CheckMapeval(1000, stats.Table{"snp1kg": {1000, 0.91, 0.80, 0.5, 0.86}}, mapevalBaseline, Thresholds{Acc: 0.02})
	expect.True(t, r.Passed())
	expect.NoError(t, r.Err())
	expect.EQ(t, len(r.Measurements), 4)
	expect.EQ(t, len(r.Warnings), 0)
}

func TestCheckMapevalAccuracyRegression(t *testing.T) {
	r := CheckMapeval(1000, stats.Table{"snp1kg": {1000, 0.87, 0.80, 0.5, 0.86}}, mapevalBaseline, Thresholds{Acc: 0.02})
	expect.EQ(t, failed(r), []string{"snp1kg accuracy"})
	err := r.Err()
	expect.True(t, errors.Is(errors.Precondition, err))
	expect.HasSubstr(t, err.Error(), "snp1kg accuracy: 0.87")
}

func TestCheckMapevalReadCount(t *testing.T) {
	r := CheckMapeval(1000, stats.Table{"snp1kg": {999, 0.95, 0.9, 0.5, 0.9}}, mapevalBaseline, Thresholds{})
	expect.EQ(t, failed(r), []string{"snp1kg reads"})
}

func TestCheckMapevalAUCZeroIsPerfect(t *testing.T) {
	// A current AUC of 0 beats any baseline.
	r := CheckMapeval(10, stats.Table{"g": {10, 0.9, 0}}, stats.Table{"g": {10, 0.9, 0.99}}, Thresholds{})
	expect.True(t, r.Passed())
	// A baseline AUC of 0 demands a perfect one.
	r = CheckMapeval(10, stats.Table{"g": {10, 0.9, 0.99}}, stats.Table{"g": {10, 0.9, 0}}, Thresholds{AUC: 0.005})
	expect.EQ(t, failed(r), []string{"g auc"})
	r = CheckMapeval(10, stats.Table{"g": {10, 0.9, 0.996}}, stats.Table{"g": {10, 0.9, 0}}, Thresholds{AUC: 0.005})
	expect.True(t, r.Passed())
}

func TestCheckMapevalMaxF1UsesAccThreshold(t *testing.T) {
	base := stats.Table{"g": {10, 0.9, 0.9, 0.5, 0.9}}
	r := CheckMapeval(10, stats.Table{"g": {10, 0.9, 0.9, 0.5, 0.885}}, base, Thresholds{Acc: 0.02, AUC: 0})
	expect.True(t, r.Passed())
	r = CheckMapeval(10, stats.Table{"g": {10, 0.9, 0.9, 0.5, 0.875}}, base, Thresholds{Acc: 0.02, AUC: 0.5})
	expect.EQ(t, failed(r), []string{"g max_f1"})
}

func TestCheckMapevalPartialInputs(t *testing.T) {
	current := stats.Table{
		"snp1kg":  {1000, 0.95},
		"newcomp": {1000, 0.1, 0.1, 0.1, 0.1},
	}
	baseline := stats.Table{
		"snp1kg":  {1000, 0.9, 0.8, 0.5, 0.85},
		"dropped": {1000, 0.9, 0.8, 0.5, 0.85},
	}
	r := CheckMapeval(1000, current, baseline, Thresholds{})
	expect.True(t, r.Passed())
	// Only reads and accuracy are comparable for snp1kg; newcomp has no
	// baseline and is not checked.
	expect.EQ(t, len(r.Measurements), 2)
	expect.EQ(t, len(r.Warnings), 2)
}

func TestCheckScoresMissingBaseline(t *testing.T) {
	var out bytes.Buffer
	r := CheckScores(ScoreCheck{
		Reads:   1000,
		Against: "primary",
		Current: stats.ScoreTable{"newgraph": {Count: 1000, WorseFraction: 0.9}},
		Out:     &out,
	}, DefaultThresholds)
	expect.True(t, r.Passed())
	expect.EQ(t, len(r.Warnings), 1)
	expect.EQ(t, r.Measurements[1].Baseline, 1.0)
	expect.EQ(t, out.String(), "newgraph vs. primary Worse: 0.9 Baseline: 1.0  Threshold: 0.005\n")
}

func TestCheckScoresPairedExempt(t *testing.T) {
	c := ScoreCheck{
		Reads:   1000,
		Against: "primary",
		Current: stats.ScoreTable{
			"snp1kg":    {Count: 1000, WorseFraction: 0.5},
			"snp1kg-pe": {Count: 1000, WorseFraction: 0.9},
		},
		Baseline: stats.ScoreTable{
			"snp1kg":    {Count: 1000, WorseFraction: 0.01},
			"snp1kg-pe": {Count: 1000, WorseFraction: 0.01},
		},
	}
	r := CheckScores(c, DefaultThresholds)
	expect.EQ(t, failed(r), []string{"snp1kg worse_fraction"})

	// Counts are still checked for paired-end methods.
	c.Current["snp1kg"] = stats.ScoreStats{Count: 1000, WorseFraction: 0.012}
	c.Current["snp1kg-pe"] = stats.ScoreStats{Count: 998, WorseFraction: 0.9}
	r = CheckScores(c, DefaultThresholds)
	expect.EQ(t, failed(r), []string{"snp1kg-pe score_reads"})
}

func TestCheckScoresAgainstInput(t *testing.T) {
	var visited []string
	r := CheckScores(ScoreCheck{
		Reads:      100,
		Against:    InputCondition,
		ReadSource: "snp1kg",
		Current: stats.ScoreTable{
			"snp1kg":    {Count: 100, WorseFraction: 0},
			"snp1kg-pe": {Count: 100, WorseFraction: 0},
			"primary":   {Count: 7, WorseFraction: 1},
		},
		Baseline: stats.ScoreTable{"snp1kg": {Count: 100, WorseFraction: 0}},
		Records: func(method, against string, fn func(stats.ScoreRecord)) error {
			visited = append(visited, method+"/"+against)
			fn(stats.ScoreRecord{Read: "r1", Diff: -2})
			if method == "snp1kg-pe" {
				return errors.E(errors.NotExist, "no per-read file")
			}
			return nil
		},
	}, DefaultThresholds)
	expect.True(t, r.Passed())
	expect.EQ(t, visited, []string{"snp1kg/input", "snp1kg-pe/input"})
	// Missing baseline for snp1kg-pe and its missing per-read file.
	expect.EQ(t, len(r.Warnings), 2)
}

func TestCheckScoresInputKeysMatchExactly(t *testing.T) {
	var out bytes.Buffer
	r := CheckScores(ScoreCheck{
		Reads:      100,
		Against:    InputCondition,
		ReadSource: "cactus",
		Current: stats.ScoreTable{
			"cactus":    {Count: 100, WorseFraction: 0},
			"cactus-pe": {Count: 100, WorseFraction: 0.5},
			"cactus-se": {Count: 7, WorseFraction: 1},
		},
		Baseline: stats.ScoreTable{
			"cactus":    {Count: 100, WorseFraction: 0},
			"cactus-pe": {Count: 100, WorseFraction: 0},
		},
		Out: &out,
	}, DefaultThresholds)
	expect.True(t, r.Passed())
	expect.EQ(t, len(r.Measurements), 3)
	for _, m := range r.Measurements {
		expect.True(t, m.Method == "cactus" || m.Method == "cactus-pe", m.String())
	}
	expect.False(t, strings.Contains(out.String(), "cactus-se"))

	// Against another graph every method is compared.
	r = CheckScores(ScoreCheck{
		Reads:      100,
		Against:    "snp1kg",
		ReadSource: "cactus",
		Current:    stats.ScoreTable{"cactus-se": {Count: 7, WorseFraction: 0}},
	}, DefaultThresholds)
	expect.EQ(t, failed(r), []string{"cactus-se score_reads"})
}

func TestCheckF1(t *testing.T) {
	r := CheckF1(0.97, 0.974, true, 0.005)
	expect.True(t, r.Passed())
	r = CheckF1(0.96, 0.974, true, 0.005)
	expect.False(t, r.Passed())
	expect.EQ(t, r.Measurements[0].Metric, MetricF1)

	r = CheckF1(0.5, 0, false, 0.005)
	expect.True(t, r.Passed())
	expect.EQ(t, len(r.Warnings), 1)

	all := &Report{}
	all.Merge(CheckF1(0.96, 0.974, true, 0.005))
	all.Merge(CheckF1(0.99, 0.974, true, 0.005))
	all.Merge(nil)
	expect.EQ(t, len(all.Measurements), 2)
	expect.EQ(t, len(all.Failures()), 1)
}

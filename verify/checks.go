// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package verify

import (
	"fmt"
	"io"
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/vgci/report"
	"github.com/grailbio/vgci/stats"
)

// InputCondition is the score baseline formed by the scores reads had when
// they were simulated.
const InputCondition = "input"

// normalizeAUC maps a degenerate AUC of 0 (a perfect classifier) to 1.
func normalizeAUC(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// CheckMapeval compares mapping evaluation stats against their baseline.
// Only methods in the baseline are checked. For each one also present in
// current, the read count must equal reads, and accuracy, AUC and max F1
// may drop by at most their thresholds. Columns missing on either side are
// not compared.
func CheckMapeval(reads int, current, baseline stats.Table, th Thresholds) *Report {
	r := &Report{}
	for _, key := range baseline.Keys() {
		base := baseline[key]
		cur, ok := current[key]
		if !ok {
			r.warnf("method %s from baseline not found in stats", key)
			continue
		}
		if len(cur) > stats.ColReads {
			r.measure(Measurement{
				Metric: MetricReads, Method: key,
				Current: cur[stats.ColReads], Baseline: float64(reads),
				Cmp: Equal, Bound: float64(reads),
			})
		}
		if len(cur) > stats.ColAccuracy && len(base) > stats.ColAccuracy {
			r.measure(Measurement{
				Metric: MetricAccuracy, Method: key,
				Current: cur[stats.ColAccuracy], Baseline: base[stats.ColAccuracy], Threshold: th.Acc,
				Cmp: AtLeast, Bound: base[stats.ColAccuracy] - th.Acc,
			})
		}
		if len(cur) > stats.ColAUC && len(base) > stats.ColAUC {
			c, b := normalizeAUC(cur[stats.ColAUC]), normalizeAUC(base[stats.ColAUC])
			r.measure(Measurement{
				Metric: MetricAUC, Method: key,
				Current: c, Baseline: b, Threshold: th.AUC,
				Cmp: AtLeast, Bound: b - th.AUC,
			})
		}
		if len(cur) > stats.ColMaxF1 && len(base) > stats.ColMaxF1 {
			r.measure(Measurement{
				Metric: MetricMaxF1, Method: key,
				Current: cur[stats.ColMaxF1], Baseline: base[stats.ColMaxF1], Threshold: th.Acc,
				Cmp: AtLeast, Bound: base[stats.ColMaxF1] - th.Acc,
			})
		}
		if len(cur) != len(base) {
			r.warnf("method %s has %d baseline entries and %d stats", key, len(base), len(cur))
		}
	}
	return r
}

// RecordSource streams the per-read score comparisons of method against a
// condition.
type RecordSource func(method, against string, fn func(stats.ScoreRecord)) error

// ScoreCheck describes one score-regression comparison.
type ScoreCheck struct {
	// Reads is the number of simulated reads.
	Reads int
	// Against is the condition scores were compared with: InputCondition or
	// a graph name.
	Against string
	// ReadSource is the graph the reads were simulated from. Against the
	// input condition, only the methods named exactly ReadSource or
	// ReadSource-pe are comparable.
	ReadSource string
	// Current holds the score.stats.<Against>.tsv of this run.
	Current stats.ScoreTable
	// Baseline holds the recorded stats; nil if none was recorded.
	Baseline stats.ScoreTable
	// Records, if set, supplies per-read comparisons; reads that got worse
	// are logged.
	Records RecordSource
	// Out, if set, receives a summary line per compared method.
	Out io.Writer
}

// CheckScores checks that every compared method kept all reads and, for
// single-end methods, that the fraction of reads scoring worse grew by at
// most th.Worse over the baseline. Paired-end methods are exempt from the
// fraction check since their mates pull them around. A method with no
// baseline is compared against MissingScoreBaseline, so it passes.
func CheckScores(c ScoreCheck, th Thresholds) *Report {
	r := &Report{}
	keys := make([]string, 0, len(c.Current))
	for key := range c.Current {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		method := stats.ParseMethod(key)
		if c.Against == InputCondition && key != c.ReadSource && key != c.ReadSource+"-pe" {
			continue
		}
		if c.Records != nil {
			err := c.Records(key, c.Against, func(rec stats.ScoreRecord) {
				if rec.Worse() {
					log.Error.Printf("read %s has a negative score increase of %d on graph %s vs. %s",
						rec.Read, rec.Diff, key, c.Against)
				}
			})
			if err != nil {
				r.warnf("per-read scores of %s vs. %s: %v", key, c.Against, err)
			}
		}
		cur := c.Current[key]
		base, ok := c.Baseline[key]
		if !ok {
			r.warnf("method %s missing from score baseline for %s; using %v", key, c.Against, stats.MissingScoreBaseline)
			base = stats.MissingScoreBaseline
		}
		if c.Out != nil {
			fmt.Fprintln(c.Out, report.ScoreLine(key, c.Against, cur.WorseFraction, base.WorseFraction, th.Worse))
		}
		r.measure(Measurement{
			Metric: MetricScoreReads, Method: key, Against: c.Against,
			Current: cur.Count, Baseline: float64(c.Reads),
			Cmp: Equal, Bound: float64(c.Reads),
		})
		if method.Paired() {
			continue
		}
		r.measure(Measurement{
			Metric: MetricWorseFraction, Method: key, Against: c.Against,
			Current: cur.WorseFraction, Baseline: base.WorseFraction, Threshold: th.Worse,
			Cmp: AtMost, Bound: base.WorseFraction + th.Worse,
		})
	}
	return r
}

// CheckF1 checks a variant-calling F1 score against its baseline. With no
// recorded baseline, the baseline is taken as 0.
func CheckF1(current, baseline float64, found bool, threshold float64) *Report {
	r := &Report{}
	if !found {
		r.warnf("no baseline F1 recorded; using 0")
		baseline = 0
	}
	r.measure(Measurement{
		Metric:  MetricF1,
		Current: current, Baseline: baseline, Threshold: threshold,
		Cmp: AtLeast, Bound: baseline - threshold,
	})
	return r
}

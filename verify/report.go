// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package verify decides whether a run regressed against its baseline.
//
// Every check records each comparison it makes as a Measurement and keeps
// going after a failed one, so a single report shows everything that
// regressed. Problems with the inputs that are not regressions (a method
// missing on one side, short rows) are logged as warnings.
package verify

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Thresholds bound how much worse than its baseline a run may be.
type Thresholds struct {
	// F1 bounds the drop in variant-calling F1.
	F1 float64
	// Worse bounds the increase in the fraction of reads whose alignment
	// score got worse.
	Worse float64
	// Acc bounds the drop in mapping accuracy and in max F1.
	Acc float64
	// AUC bounds the drop in area under the ROC curve.
	AUC float64
}

// DefaultThresholds are used by scenarios that do not set their own.
var DefaultThresholds = Thresholds{F1: 0.005, Worse: 0.005}

// Cmp is the relation a measurement must satisfy against its bound.
type Cmp int

const (
	// AtLeast requires Current >= Bound.
	AtLeast Cmp = iota
	// AtMost requires Current <= Bound.
	AtMost
	// Equal requires Current == Bound.
	Equal
)

func (c Cmp) String() string {
	switch c {
	case AtMost:
		return "<="
	case Equal:
		return "=="
	}
	return ">="
}

func (c Cmp) holds(current, bound float64) bool {
	switch c {
	case AtMost:
		return current <= bound
	case Equal:
		return current == bound
	}
	return current >= bound
}

// Metric names.
const (
	MetricReads         = "reads"
	MetricAccuracy      = "accuracy"
	MetricAUC           = "auc"
	MetricMaxF1         = "max_f1"
	MetricScoreReads    = "score_reads"
	MetricWorseFraction = "worse_fraction"
	MetricF1            = "f1"
)

// Measurement is one comparison of a current value against a bound derived
// from the baseline.
type Measurement struct {
	Metric string
	// Method is the aligner/graph condition measured; empty for run-wide
	// metrics.
	Method string
	// Against names the score baseline condition of score checks.
	Against   string
	Current   float64
	Baseline  float64
	Threshold float64
	Cmp       Cmp
	Bound     float64
	Passed    bool
}

func (m Measurement) String() string {
	name := m.Metric
	if m.Method != "" {
		name = m.Method + " " + name
	}
	if m.Against != "" {
		name += " vs. " + m.Against
	}
	return fmt.Sprintf("%s: %v, want %s %v (baseline %v, threshold %v)",
		name, m.Current, m.Cmp, m.Bound, m.Baseline, m.Threshold)
}

// Report collects the measurements and warnings of one or more checks.
type Report struct {
	Measurements []Measurement
	Warnings     []string
}

func (r *Report) measure(m Measurement) {
	m.Passed = m.Cmp.holds(m.Current, m.Bound)
	if !m.Passed {
		log.Printf("regression: %s", m)
	}
	r.Measurements = append(r.Measurements, m)
}

func (r *Report) warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Error.Printf("warning: %s", msg)
	r.Warnings = append(r.Warnings, msg)
}

// Merge appends other's measurements and warnings to r.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Measurements = append(r.Measurements, other.Measurements...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Failures returns the measurements that did not pass.
func (r *Report) Failures() []Measurement {
	var failed []Measurement
	for _, m := range r.Measurements {
		if !m.Passed {
			failed = append(failed, m)
		}
	}
	return failed
}

// Passed reports whether every measurement passed.
func (r *Report) Passed() bool { return len(r.Failures()) == 0 }

// Err returns a Precondition error listing the failed measurements, or nil.
func (r *Report) Err() error {
	failed := r.Failures()
	if len(failed) == 0 {
		return nil
	}
	lines := make([]string, len(failed))
	for i, m := range failed {
		lines[i] = m.String()
	}
	return errors.E(errors.Precondition, fmt.Sprintf("%d regression(s):\n\t%s", len(failed), strings.Join(lines, "\n\t")))
}

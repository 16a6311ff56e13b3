// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package tally counts scenario outcomes. It is the only state shared
// between scenarios of one harness invocation. Counts can be exported as a
// Prometheus text file for a node exporter to pick up.
package tally

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result is the outcome of one scenario.
type Result string

const (
	Pass    Result = "pass"
	Fail    Result = "fail"
	Timeout Result = "timeout"
	Skip    Result = "skip"
)

// Tally accumulates scenario results. It is safe for concurrent use.
type Tally struct {
	reg      *prometheus.Registry
	total    *prometheus.CounterVec
	duration *prometheus.GaugeVec

	mu      sync.Mutex
	results map[string]Result
	order   []string
}

// New returns an empty tally with its own registry.
func New() *Tally {
	t := &Tally{
		reg: prometheus.NewRegistry(),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vgci",
			Name:      "scenarios_total",
			Help:      "Scenarios run, by result.",
		}, []string{"result"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vgci",
			Name:      "scenario_duration_seconds",
			Help:      "Wall-clock duration of the last run of each scenario.",
		}, []string{"scenario"}),
		results: map[string]Result{},
	}
	t.reg.MustRegister(t.total, t.duration)
	for _, r := range []Result{Pass, Fail, Timeout, Skip} {
		t.total.WithLabelValues(string(r))
	}
	return t
}

// Registry exposes the tally's metrics.
func (t *Tally) Registry() *prometheus.Registry { return t.reg }

// Record adds one scenario result.
func (t *Tally) Record(scenario string, r Result, d time.Duration) {
	t.total.WithLabelValues(string(r)).Inc()
	if r != Skip {
		t.duration.WithLabelValues(scenario).Set(d.Seconds())
	}
	t.mu.Lock()
	if _, ok := t.results[scenario]; !ok {
		t.order = append(t.order, scenario)
	}
	t.results[scenario] = r
	t.mu.Unlock()
}

// Count returns the number of scenarios whose latest result is r.
func (t *Tally) Count(r Result) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, got := range t.results {
		if got == r {
			n++
		}
	}
	return n
}

// Failed returns the scenarios that failed or timed out, sorted.
func (t *Tally) Failed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var failed []string
	for name, r := range t.results {
		if r == Fail || r == Timeout {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return failed
}

// OK reports whether no scenario failed.
func (t *Tally) OK() bool { return len(t.Failed()) == 0 }

// Summary is a one-line account of the results.
func (t *Tally) Summary() string {
	s := fmt.Sprintf("%d passed, %d failed, %d timed out, %d skipped",
		t.Count(Pass), t.Count(Fail), t.Count(Timeout), t.Count(Skip))
	if failed := t.Failed(); len(failed) > 0 {
		s += ": " + strings.Join(failed, ", ")
	}
	return s
}

// WriteTextfile writes the metrics in the Prometheus text format.
func (t *Tally) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, t.reg)
}

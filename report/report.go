// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package report writes the tagged result blocks that the CI log miner
// extracts from a harness's standard output:
//
//	<VGCI name = "map eval results" tsv = "True">
//	Method	Acc.	Baseline Acc.	...
//	snp1kg-se	↑ 0.91	0.9	...
//	</VGCI>
//
// Anything outside a block is ignored by the miner.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/grailbio/base/tsv"
)

const (
	openTag  = "<VGCI"
	closeTag = "</VGCI>"
	// NotAvailable fills summary cells that have no baseline.
	NotAvailable = "N/A"
)

// Begin writes the opening sentinel of a block. name may be empty.
func Begin(w io.Writer, name string, isTSV bool) error {
	token := openTag
	if name != "" {
		token += ` name = "` + name + `"`
	}
	if isTSV {
		token += ` tsv = "True"`
	}
	_, err := fmt.Fprintf(w, "\n%s>\n", token)
	return err
}

// End writes the closing sentinel of a block.
func End(w io.Writer) error {
	_, err := io.WriteString(w, closeTag+"\n\n")
	return err
}

// WriteBlock writes rows as a tab-separated block.
func WriteBlock(w io.Writer, name string, rows [][]string) error {
	if err := Begin(w, name, true); err != nil {
		return err
	}
	tw := tsv.NewWriter(w)
	for _, row := range rows {
		if len(row) == 0 {
			// EndLine needs at least one field to terminate.
			tw.WriteString("")
		}
		for _, cell := range row {
			tw.WriteString(cell)
		}
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return End(w)
}

// FormatFloat renders a value the way the log miner has always seen them:
// twelve significant digits, and integral values keep a trailing ".0".
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', 12, 64)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return s
	}
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// round5 rounds half away from zero to five decimal places.
func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

// ScoreLine is the one-line summary printed for each score comparison.
func ScoreLine(method, against string, worse, baseline, threshold float64) string {
	return fmt.Sprintf("%s vs. %s Worse: %s Baseline: %s  Threshold: %s",
		method, against, FormatFloat(worse), FormatFloat(baseline), FormatFloat(threshold))
}

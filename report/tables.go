// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package report

import (
	"strings"

	"github.com/grailbio/vgci/stats"
)

// Glyphs prefixed to a current value that differs from its baseline.
const (
	Improved  = "↑"
	Regressed = "↓"
)

// MapevalHeader is the header row of the mapping evaluation table.
var MapevalHeader = []string{"Method", "Acc.", "Baseline Acc.", "AUC", "Baseline AUC", "Max F1", "Baseline F1"}

var mapevalColumns = []int{stats.ColAccuracy, stats.ColAUC, stats.ColMaxF1}

// MapevalName is the block name of the mapping evaluation table. The name
// explains the control markers when controls are set.
func MapevalName(positive, negative string) string {
	name := "map eval results"
	if positive != "" {
		name += " (*: positive control)"
	}
	if negative != "" {
		name += " (**: negative control)"
	}
	return name
}

func cell(c stats.Cell) string {
	if !c.OK {
		return stats.DNE
	}
	return FormatFloat(round5(c.Value))
}

// MapevalRows builds the mapping evaluation table: one row per method in
// either table, sorted. Methods are labeled as in the plots (single-end runs
// get "-se"); the positive control is starred once and the negative control
// twice. Each current value is marked improved or regressed relative to its
// baseline when both exist.
func MapevalRows(current, baseline stats.Table, positive, negative string) [][]string {
	rows := [][]string{append([]string(nil), MapevalHeader...)}
	pos, neg := controlKeys(positive), controlKeys(negative)
	for _, key := range stats.UnionKeys(current, baseline) {
		cur := current.Padded(key, stats.NumColumns)
		base := baseline.Padded(key, stats.NumColumns)
		label := stats.ParseMethod(key).Display()
		if pos[key] {
			label += "*"
		}
		if neg[key] {
			label += "**"
		}
		row := []string{label}
		for _, col := range mapevalColumns {
			c, b := cur[col], base[col]
			value := cell(c)
			if c.OK && b.OK {
				switch {
				case c.Value < b.Value:
					value = Regressed + " " + value
				case c.Value > b.Value:
					value = Improved + " " + value
				}
			}
			row = append(row, value, cell(b))
		}
		rows = append(rows, row)
	}
	return rows
}

// controlKeys returns the stats keys of a control graph: its single-end
// (bare) and paired-end keys.
func controlKeys(name string) map[string]bool {
	if name == "" {
		return nil
	}
	return map[string]bool{
		name: true,
		stats.Method{Name: name, Ends: stats.PairedEnd}.Key(): true,
	}
}

// VcfevalName is the block name of the vcfeval summary.
const VcfevalName = "vcfeval Results"

// F1SummaryRows re-annotates a vcfeval summary for the report. The summary's
// separator line (line 1) is dropped; the header's last column is replaced
// by F1, Baseline F1 and Test Threshold; the first data row, which holds
// the F1 score, gets the baseline and threshold appended; later rows get
// N/A.
func F1SummaryRows(summary string, baselineF1, threshold float64) [][]string {
	var rows [][]string
	for i, line := range strings.Split(strings.TrimSuffix(summary, "\n"), "\n") {
		toks := strings.Fields(line)
		switch {
		case i == 0:
			if len(toks) > 0 {
				toks = toks[:len(toks)-1]
			}
			toks = append(toks, "F1", "Baseline F1", "Test Threshold")
		case i == 1:
			continue
		case i == 2:
			toks = append(toks, FormatFloat(baselineF1), FormatFloat(threshold))
		default:
			toks = append(toks, NotAvailable, NotAvailable)
		}
		rows = append(rows, toks)
	}
	return rows
}

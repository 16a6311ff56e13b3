// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/vgci/stats"
	"github.com/sebdah/goldie/v2"
)

var (
	current = stats.Table{
		"snp1kg":     {1000, 0.91, 0.80, 0.5, 0.86},
		"primary-pe": {1000, 0.9, 0, 0.4, 0.8},
		"cactus":     {1000, 0.95},
	}
	baseline = stats.Table{
		"snp1kg":     {1000, 0.90, 0.80, 0.5, 0.85},
		"primary-pe": {1000, 0.92, 0.7, 0.4, 0.8},
		"old":        {1000, 0.5, 0.5, 0.5, 0.5},
	}
)

const summary = `Threshold  True-pos-baseline  True-pos-call  False-pos  False-neg  Precision  Sensitivity  F-measure
----------------------------------------------------------------------------------------------------
   18.000                 4519           4519         74         99     0.9839       0.9786     0.9812
     None                 4528           4528        100         90     0.9784       0.9805     0.9795
`

func TestMapevalGolden(t *testing.T) {
	var buf bytes.Buffer
	rows := MapevalRows(current, baseline, "cactus", "primary")
	assert.NoError(t, WriteBlock(&buf, MapevalName("cactus", "primary"), rows))
	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "mapeval", buf.Bytes())
}

func TestVcfevalGolden(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, WriteBlock(&buf, VcfevalName, F1SummaryRows(summary, 0.98, 0.005)))
	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "vcfeval", buf.Bytes())
}

func TestMapevalRowsWithoutControls(t *testing.T) {
	rows := MapevalRows(stats.Table{"snp1kg-pe": {10, 0.5}}, nil, "", "")
	expect.EQ(t, rows[1], []string{"snp1kg-pe", "0.5", "DNE", "DNE", "DNE", "DNE", "DNE"})
	expect.EQ(t, MapevalName("", ""), "map eval results")
	expect.EQ(t, MapevalName("", "primary"), "map eval results (**: negative control)")

	// Values are rounded before printing but compared unrounded.
	rows = MapevalRows(stats.Table{"g": {1, 0.9000001}}, stats.Table{"g": {1, 0.9}}, "", "")
	expect.EQ(t, rows[1][1], "↑ 0.9")
}

func TestExtractRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("toil-vg chatter\n")
	rows := MapevalRows(current, baseline, "", "")
	assert.NoError(t, WriteBlock(&buf, MapevalName("", ""), rows))
	buf.WriteString("more chatter\n")
	assert.NoError(t, Begin(&buf, "", false))
	buf.WriteString("free text\n")
	assert.NoError(t, End(&buf))

	blocks, err := Extract(&buf)
	assert.NoError(t, err)
	expect.EQ(t, len(blocks), 2)
	expect.EQ(t, blocks[0].Name, "map eval results")
	expect.True(t, blocks[0].TSV)
	expect.EQ(t, blocks[0].Rows(), rows)
	expect.EQ(t, blocks[1].Name, "")
	expect.False(t, blocks[1].TSV)
	expect.EQ(t, blocks[1].Lines, []string{"free text"})

	// The extracted values match the parsed inputs.
	for _, row := range blocks[0].Rows()[1:] {
		key := strings.TrimSuffix(row[0], "-se")
		acc := row[1]
		if i := strings.LastIndex(acc, " "); i >= 0 {
			acc = acc[i+1:]
		}
		want := stats.DNE
		if v, ok := current.Get(key, stats.ColAccuracy); ok {
			want = FormatFloat(v)
		}
		expect.EQ(t, acc, want, key)
	}
}

func TestExtractErrors(t *testing.T) {
	_, err := Extract(strings.NewReader("<VGCI>\nx\n"))
	expect.True(t, errors.Is(errors.Invalid, err))
	_, err = Extract(strings.NewReader("</VGCI>\n"))
	expect.True(t, errors.Is(errors.Invalid, err))
	_, err = Extract(strings.NewReader("<VGCI>\n<VGCI>\n</VGCI>\n"))
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestFormat(t *testing.T) {
	expect.EQ(t, FormatFloat(1000), "1000.0")
	expect.EQ(t, FormatFloat(0.005), "0.005")
	expect.EQ(t, FormatFloat(0), "0.0")
	expect.EQ(t, FormatFloat(1e-5), "1e-05")
	expect.EQ(t, ScoreLine("snp1kg", "primary", 0.01, 1, 0.005),
		"snp1kg vs. primary Worse: 0.01 Baseline: 1.0  Threshold: 0.005")
}

func TestF1SummaryRows(t *testing.T) {
	rows := F1SummaryRows(summary, 0.98, 0.005)
	expect.EQ(t, len(rows), 3)
	expect.EQ(t, rows[0][len(rows[0])-3:], []string{"F1", "Baseline F1", "Test Threshold"})
	expect.EQ(t, rows[1][len(rows[1])-2:], []string{"0.98", "0.005"})
	expect.EQ(t, rows[2][len(rows[2])-2:], []string{"N/A", "N/A"})
	for _, row := range rows {
		expect.EQ(t, len(row), 10)
	}
}

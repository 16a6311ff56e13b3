// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/vgci/ledger"
	"github.com/grailbio/vgci/scenario"
	"github.com/grailbio/vgci/verify"
	"v.io/x/lib/cmdline"
)

func TestList(t *testing.T) {
	r := scenario.Builtin()
	var out bytes.Buffer
	assert.NoError(t, list(&out, r, false))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	expect.EQ(t, len(lines), 14)
	expect.HasSubstr(t, out.String(), "test_sim_mhc_cactus\tmapeval\tsim-MHC-cactus\t1h0m0s\t\n")

	out.Reset()
	assert.NoError(t, list(&out, r, true))
	lines = strings.Split(strings.TrimSpace(out.String()), "\n")
	expect.EQ(t, len(lines), r.Len())
	expect.HasSubstr(t, out.String(), "baseline missing")
}

func TestListCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	env := &cmdline.Env{Stdout: &stdout, Stderr: &stderr, Vars: map[string]string{}}
	assert.NoError(t, cmdline.ParseAndRun(newCmdRoot(), env, []string{"list", "-all"}))
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	expect.EQ(t, len(lines), scenario.Builtin().Len())
	expect.HasSubstr(t, stdout.String(), "test_map_mhc_primary\tbakeoff\tMHC-primary\t2h46m40s\t\n")

	stdout.Reset()
	err := cmdline.ParseAndRun(newCmdRoot(), env, []string{"verify", "test_map_mhc_primary"})
	expect.HasSubstr(t, err.Error(), "-workdir is required")
}

func TestSelectScenarios(t *testing.T) {
	r := scenario.Builtin()
	s, err := selectScenarios(r, nil, false)
	assert.NoError(t, err)
	expect.EQ(t, len(s), 14)
	s, err = selectScenarios(r, nil, true)
	assert.NoError(t, err)
	expect.EQ(t, len(s), r.Len())
	s, err = selectScenarios(r, []string{"test_map_mhc_cactus"}, false)
	assert.NoError(t, err)
	expect.EQ(t, s[0].Name, "test_map_mhc_cactus")
	_, err = selectScenarios(r, []string{"nope"}, false)
	expect.True(t, err != nil)
}

func TestHistory(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "history")
	defer cleanup()
	ctx := context.Background()
	l, err := ledger.Open(filepath.Join(dir, "ledger.db"))
	assert.NoError(t, err)
	defer l.Close() // nolint: errcheck
	assert.NoError(t, l.RecordMeasurements(ctx, "test_map_brca1_primary", "BRCA1-primary", []verify.Measurement{
		{Metric: verify.MetricF1, Current: 0.9, Baseline: 0.98, Threshold: 0.005, Passed: false},
	}))

	var out bytes.Buffer
	assert.NoError(t, history(ctx, &out, l, "test_map_brca1_primary", verify.MetricF1, "", 5))
	fields := strings.Split(strings.TrimSpace(out.String()), "\t")
	expect.EQ(t, len(fields), 5)
	expect.EQ(t, fields[0], l.RunID())
	expect.EQ(t, fields[2:], []string{"0.9", "0.98", "fail"})

	out.Reset()
	assert.NoError(t, history(ctx, &out, l, "test_map_brca1_primary", verify.MetricAccuracy, "", 5))
	expect.EQ(t, out.Len(), 0)
}

func TestSetup(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "setup")
	defer cleanup()
	config := filepath.Join(dir, "vgci.yaml")
	assert.NoError(t, writeFile(config, "cores: 2\nledger: /tmp/l.db\n"))
	extra := filepath.Join(dir, "extra.yaml")
	assert.NoError(t, writeFile(extra, `scenarios:
  - name: test_map_brca2_extra
    kind: bakeoff
    region: BRCA2
    graph: extra
    timeout: 10m
`))
	empty := ""
	f := setupFlags{config: &config, scenarios: &extra}
	cfg, r, err := f.setup(context.Background())
	assert.NoError(t, err)
	expect.EQ(t, cfg.Cores, 2)
	expect.EQ(t, cfg.LedgerPath, "/tmp/l.db")
	expect.EQ(t, r.Len(), scenario.Builtin().Len()+1)

	f = setupFlags{config: &empty, scenarios: &empty}
	cfg, _, err = f.setup(context.Background())
	assert.NoError(t, err)
	expect.EQ(t, cfg, scenario.DefaultConfig)
}

func writeFile(path, data string) error {
	return ioutil.WriteFile(path, []byte(data), 0644)
}

// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package scenario

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/vgci/artifact"
	"github.com/grailbio/vgci/ledger"
	"github.com/grailbio/vgci/pipeline"
	"github.com/grailbio/vgci/position"
	"github.com/grailbio/vgci/report"
	"github.com/grailbio/vgci/tally"
	"github.com/grailbio/vgci/verify"
)

// fakeRunner records commands. Pipeline stages write canned files into
// their output store; Rscript writes the plot it was asked for.
type fakeRunner struct {
	mu      sync.Mutex
	cmds    []pipeline.Command
	outputs map[string]map[string]string
	// block makes every command wait for its context to end.
	block bool
}

func (f *fakeRunner) Run(ctx context.Context, cmd pipeline.Command) error {
	f.mu.Lock()
	f.cmds = append(f.cmds, cmd)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return errors.E(errors.Timeout, cmd.String(), ctx.Err())
	}
	if cmd.Name == "Rscript" {
		if _, err := os.Stat(filepath.Join(cmd.Dir, cmd.Positional[0])); err != nil {
			return err
		}
		return ioutil.WriteFile(filepath.Join(cmd.Dir, cmd.Positional[2]), []byte("<svg/>"), 0644)
	}
	out := cmd.Positional[len(cmd.Positional)-1]
	for name, data := range f.outputs[cmd.Stage] {
		if err := os.MkdirAll(out, 0777); err != nil {
			return err
		}
		if err := ioutil.WriteFile(filepath.Join(out, name), []byte(data), 0644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRunner) names() []string {
	var names []string
	for _, cmd := range f.cmds {
		name := cmd.Stage
		if name == "" {
			name = cmd.Name
		}
		names = append(names, name)
	}
	return names
}

type env struct {
	dir, input, baseline, work, scripts string
	cleanup                             func()
}

func newEnv(t *testing.T) *env {
	dir, cleanup := testutil.TempDir(t, "", "harness")
	e := &env{
		dir:      dir,
		input:    filepath.Join(dir, "input"),
		baseline: filepath.Join(dir, "baseline"),
		work:     filepath.Join(dir, "work"),
		scripts:  filepath.Join(dir, "scripts"),
		cleanup:  cleanup,
	}
	for _, name := range PlotScripts {
		e.write(t, filepath.Join(e.scripts, fmt.Sprintf("plot-%s.R", name)), "# plot\n")
	}
	return e
}

func (e *env) write(t *testing.T, path, data string) {
	assert.NoError(t, os.MkdirAll(filepath.Dir(path), 0777))
	assert.NoError(t, ioutil.WriteFile(path, []byte(data), 0644))
}

func (e *env) baselineFile(t *testing.T, tag, name, data string) {
	e.write(t, filepath.Join(e.baseline, artifact.OutStoreName(tag), name), data)
}

func (e *env) harness(r *fakeRunner, out *bytes.Buffer) *Harness {
	cfg := DefaultConfig
	cfg.WorkDir = e.work
	cfg.Baseline = e.baseline
	cfg.InputStore = e.input
	cfg.ScriptDir = e.scripts
	h := New(cfg, &artifact.Store{})
	h.Runner = r
	h.Out = out
	return h
}

const vcfevalSummary = `Threshold  True-pos-baseline  True-pos-call  False-pos  False-neg  Precision  Sensitivity  F-measure
----------------------------------------------------------------------------------------------------
   18.000                 4519           4519         74         99     0.9839       0.9786     0.9812
     None                 4528           4528        100         90     0.9784       0.9805     0.9795
`

func bakeoffScenario() Scenario {
	return Scenario{Name: "test_map_brca1_primary", Kind: Bakeoff, Region: "BRCA1", Graph: "primary", Timeout: time.Minute}
}

func bakeoffRunner(f1 string) *fakeRunner {
	return &fakeRunner{outputs: map[string]map[string]string{
		pipeline.StageRun: {
			"NA12878_vcfeval_output_f1.txt":      f1,
			"NA12878_vcfeval_output_summary.txt": vcfevalSummary,
		},
	}}
}

func TestBakeoffPasses(t *testing.T) {
	e := newEnv(t)
	defer e.cleanup()
	e.baselineFile(t, "BRCA1-primary", "NA12878_vcfeval_output_f1.txt", "0.98\n")
	var out bytes.Buffer
	r := bakeoffRunner("0.9812\n")
	h := e.harness(r, &out)

	rep, err := h.Run(context.Background(), bakeoffScenario())
	assert.NoError(t, err)
	expect.True(t, rep.Passed())
	expect.EQ(t, r.names(), []string{pipeline.StageRun})

	cmd := r.cmds[0]
	expect.EQ(t, cmd.Positional[1], BakeoffSample)
	offsets, _ := cmd.Flags.Values("--vcf_offsets")
	expect.EQ(t, offsets, []string{"43044293"})
	fastq, _ := cmd.Flags.Values("--fastq")
	expect.EQ(t, fastq, []string{filepath.Join(e.input, "platinum_NA12878_BRCA1.fq.gz")})
	fasta, _ := cmd.Flags.Values("--vcfeval_fasta")
	expect.EQ(t, fasta, []string{filepath.Join(e.input, "chr17.fa.gz")})
	expect.False(t, cmd.Flags.Has("--gcsa_index"))
	expect.True(t, cmd.Flags.Has("--interleaved"))

	blocks, err := report.Extract(&out)
	assert.NoError(t, err)
	expect.EQ(t, len(blocks), 1)
	expect.EQ(t, blocks[0].Name, report.VcfevalName)
	expect.EQ(t, blocks[0].Rows()[1], []string{"18.000", "4519", "4519", "74", "99", "0.9839", "0.9786", "0.9812", "0.98", "0.005"})

	expect.EQ(t, h.Tally.Count(tally.Pass), 1)
	_, err = os.Stat(filepath.Join(e.work, "test_map_brca1_primary"))
	expect.True(t, os.IsNotExist(err))
}

func TestBakeoffSkipIndexing(t *testing.T) {
	e := newEnv(t)
	defer e.cleanup()
	r := bakeoffRunner("0.5\n")
	h := e.harness(r, &bytes.Buffer{})
	s := bakeoffScenario()
	s.SkipIndexing, s.Multipath, s.TagExt = true, true, "-mpmap"
	s.MiscOpts = []string{"--filter_opts", "-q 15"}

	// Without a recorded baseline F1 the check passes against 0.
	rep, err := h.Run(context.Background(), s)
	assert.NoError(t, err)
	expect.EQ(t, len(rep.Warnings), 1)

	cmd := r.cmds[0]
	expect.EQ(t, cmd.Positional[0], filepath.Join(e.work, s.Name, "jobstoreBRCA1-primary-mpmap"))
	gcsa, _ := cmd.Flags.Values("--gcsa_index")
	expect.EQ(t, gcsa, []string{filepath.Join(e.input, "primary-BRCA1.gcsa")})
	expect.HasSubstr(t, cmd.String(), `--filter_opts "-q 15"`)
	expect.True(t, cmd.Flags.Has("--multipath"))
}

func TestBakeoffRegression(t *testing.T) {
	e := newEnv(t)
	defer e.cleanup()
	e.baselineFile(t, "BRCA1-primary", "NA12878_vcfeval_output_f1.txt", "0.98\n")
	h := e.harness(bakeoffRunner("0.9\n"), &bytes.Buffer{})
	l, err := ledger.Open(filepath.Join(e.dir, "ledger.db"))
	assert.NoError(t, err)
	defer l.Close() // nolint: errcheck
	h.Ledger = l

	ctx := context.Background()
	rep, err := h.Run(ctx, bakeoffScenario())
	expect.True(t, errors.Is(errors.Precondition, err))
	expect.EQ(t, len(rep.Failures()), 1)
	expect.EQ(t, rep.Failures()[0].Metric, verify.MetricF1)
	expect.EQ(t, h.Tally.Failed(), []string{"test_map_brca1_primary"})

	outcomes, err := l.Outcomes(ctx, l.RunID())
	assert.NoError(t, err)
	expect.EQ(t, len(outcomes), 1)
	expect.EQ(t, outcomes[0].Result, tally.Fail)
	expect.EQ(t, outcomes[0].Tag, "BRCA1-primary")
	hist, err := l.History(ctx, "test_map_brca1_primary", verify.MetricF1, "", 5)
	assert.NoError(t, err)
	expect.EQ(t, len(hist), 1)
	expect.EQ(t, hist[0].Current, 0.9)
	expect.EQ(t, hist[0].Baseline, 0.98)
}

func TestMalformedBaselineIsFatal(t *testing.T) {
	e := newEnv(t)
	defer e.cleanup()
	e.baselineFile(t, "BRCA1-primary", "NA12878_vcfeval_output_f1.txt", "not a number\n")
	h := e.harness(bakeoffRunner("0.9\n"), &bytes.Buffer{})
	rep, err := h.Run(context.Background(), bakeoffScenario())
	expect.True(t, rep == nil)
	expect.True(t, errors.Is(errors.Invalid, err))
	expect.EQ(t, h.Tally.Count(tally.Fail), 1)
}

func TestNoVerify(t *testing.T) {
	e := newEnv(t)
	defer e.cleanup()
	r := &fakeRunner{}
	h := e.harness(r, &bytes.Buffer{})
	h.Config.Verify = false
	rep, err := h.Run(context.Background(), bakeoffScenario())
	assert.NoError(t, err)
	expect.True(t, rep == nil)
}

func TestTimeout(t *testing.T) {
	e := newEnv(t)
	defer e.cleanup()
	h := e.harness(&fakeRunner{block: true}, &bytes.Buffer{})
	s := bakeoffScenario()
	s.Timeout = 20 * time.Millisecond
	_, err := h.Run(context.Background(), s)
	expect.True(t, errors.Is(errors.Timeout, err))
	expect.EQ(t, h.Tally.Count(tally.Timeout), 1)
}

func TestRunAll(t *testing.T) {
	e := newEnv(t)
	defer e.cleanup()
	e.baselineFile(t, "BRCA1-primary", "NA12878_vcfeval_output_f1.txt", "0.98\n")
	r := bakeoffRunner("0.99\n")
	h := e.harness(r, &bytes.Buffer{})
	h.Config.MetricsPath = filepath.Join(e.dir, "vgci.prom")
	skipped := bakeoffScenario()
	skipped.Name, skipped.Graph, skipped.Skip = "test_map_brca1_cactus", "cactus", true

	ctx := context.Background()
	assert.NoError(t, h.RunAll(ctx, []Scenario{bakeoffScenario(), skipped}, false))
	expect.EQ(t, len(r.cmds), 1)
	expect.EQ(t, h.Tally.Count(tally.Skip), 1)
	data, err := ioutil.ReadFile(h.Config.MetricsPath)
	assert.NoError(t, err)
	expect.HasSubstr(t, string(data), `vgci_scenarios_total{result="skip"} 1`)

	// The skipped scenario has no baseline, so it passes against 0.
	assert.NoError(t, h.RunAll(ctx, []Scenario{skipped}, true))
	expect.EQ(t, len(r.cmds), 2)

	bad := bakeoffRunner("0.1\n")
	h.Runner = bad
	err = h.RunAll(ctx, []Scenario{bakeoffScenario()}, false)
	expect.True(t, errors.Is(errors.Precondition, err))
	expect.HasSubstr(t, err.Error(), "test_map_brca1_primary")
}

const (
	statsTSV = `aligner	count	acc	auc	qq-r	max-f1
snp1kg	1000	0.95	0.97	0.5	0.96
cactus	1000	0.96	0.98	0.5	0.97
`
	inputScores = `aligner	count	worse
cactus	1000	0.01
cactus-pe	1000	0.5
snp1kg	1000	0.9
`
	snp1kgScores = `aligner	count	worse
cactus	1000	0.02
snp1kg	1000	0
`
	positionResults = `correct	mq	aligner	read
1	60	cactus-se	r1
0	3	snp1kg-se	r2
`
)

func mapevalScenario() Scenario {
	return Scenario{
		Name: "test_sim_mhc_cactus", Kind: Mapeval, Region: "MHC", Graph: "cactus",
		Timeout: time.Minute, Reads: 1000, TestGraphs: []string{"snp1kg", "cactus"},
		ScoreBaseline: "snp1kg", SourcePaths: []string{"GI568335986"},
		AccThreshold: 0.02, AUCThreshold: 0.02,
	}.withDefaults()
}

func mapevalEnv(t *testing.T, stats string) (*env, *fakeRunner) {
	e := newEnv(t)
	for _, g := range []string{"cactus", "snp1kg"} {
		e.write(t, filepath.Join(e.input, g+"-MHC.gcsa"), "gcsa")
		e.write(t, filepath.Join(e.input, g+"-MHC.gcsa.lcp"), "lcp")
	}
	e.baselineFile(t, "sim-MHC-cactus", "stats.tsv", statsTSV)
	r := &fakeRunner{outputs: map[string]map[string]string{
		pipeline.StageMapeval: {
			"stats.tsv":                      stats,
			"score.stats.input.tsv":          inputScores,
			"score.stats.snp1kg.tsv":         snp1kgScores,
			"cactus.compare.input.scores":    "r1, 0, 10, 10\nr2, -3, 7, 10\n",
			"cactus-pe.compare.input.scores": "r1, 0, 10, 10\n",
			"cactus.compare.snp1kg.scores":   "r1, 2, 12, 10\n",
			"snp1kg.compare.snp1kg.scores":   "r1, 0, 10, 10\n",
			position.ResultsName:             positionResults,
		},
	}}
	return e, r
}

func TestMapeval(t *testing.T) {
	e, r := mapevalEnv(t, statsTSV)
	defer e.cleanup()
	var out bytes.Buffer
	h := e.harness(r, &out)
	h.Config.Teardown = false
	s := mapevalScenario()

	rep, err := h.Run(context.Background(), s)
	assert.NoError(t, err)
	expect.True(t, rep.Passed())
	expect.EQ(t, r.names(), []string{
		pipeline.StageIndex, pipeline.StageIndex, pipeline.StageSim, pipeline.StageMapeval,
		"Rscript", "Rscript", "Rscript",
	})

	work := filepath.Join(e.work, s.Name)
	l := pipeline.Layout{WorkDir: work}
	tag := "sim-MHC-cactus"
	names, _ := r.cmds[0].Flags.Values("--index_name")
	expect.EQ(t, names, []string{"cactus-MHC"})
	expect.True(t, r.cmds[0].Flags.Has("--skip_gcsa"))
	chroms, _ := r.cmds[0].Flags.Values("--chroms")
	expect.EQ(t, chroms, []string{"6"})
	for _, name := range []string{"cactus-MHC.gcsa", "cactus-MHC.gcsa.lcp", "snp1kg-MHC.gcsa"} {
		_, err := os.Stat(l.OutFile(tag, name))
		expect.NoError(t, err, name)
	}

	sim := r.cmds[2]
	expect.EQ(t, sim.Positional, []string{l.JobStore(tag), l.OutFile(tag, "cactus-MHC.xg"), "500", l.OutStore(tag)})
	paths, _ := sim.Flags.Values("--path")
	expect.EQ(t, paths, []string{"GI568335986"})
	opts, _ := sim.Flags.Values("--sim_opts")
	expect.EQ(t, opts, []string{DefaultSimOpts})

	mapeval := r.cmds[3]
	bases, _ := mapeval.Flags.Values("--index-bases")
	expect.EQ(t, bases, []string{l.OutFile(tag, "snp1kg-MHC"), l.OutFile(tag, "cactus-MHC")})
	cmp, _ := mapeval.Flags.Values("--compare-gam-scores")
	expect.EQ(t, cmp, []string{"snp1kg"})

	for _, plot := range []string{"pr.svg", "qq.svg", "roc.svg"} {
		_, err := os.Stat(l.OutFile(tag, plot))
		expect.NoError(t, err, plot)
	}
	_, err = os.Stat(filepath.Join(work, "plot-pr.R"))
	expect.True(t, os.IsNotExist(err))
	_, err = os.Stat(l.OutFile(tag, position.FilteredName(position.ResultsName)))
	expect.True(t, os.IsNotExist(err))

	text := out.String()
	expect.HasSubstr(t, text, "cactus vs. input Worse: 0.01 Baseline: 1.0  Threshold: 0.005")
	expect.HasSubstr(t, text, "snp1kg vs. snp1kg Worse: 0.0 Baseline: 1.0  Threshold: 0.005")
	expect.False(t, strings.Contains(text, "snp1kg vs. input"))
	blocks, err := report.Extract(strings.NewReader(text))
	assert.NoError(t, err)
	expect.EQ(t, len(blocks), 1)
	expect.EQ(t, blocks[0].Name, "map eval results")

	// The results can be verified again without rerunning the pipeline.
	r.cmds = nil
	rep, err = h.Verify(context.Background(), s, work)
	assert.NoError(t, err)
	expect.True(t, rep.Passed())
	expect.EQ(t, r.names(), []string{"Rscript", "Rscript", "Rscript"})
}

func TestMapevalRegression(t *testing.T) {
	e, r := mapevalEnv(t, strings.Replace(statsTSV, "snp1kg	1000	0.95", "snp1kg	1000	0.90", 1))
	defer e.cleanup()
	h := e.harness(r, &bytes.Buffer{})
	_, err := h.Run(context.Background(), mapevalScenario())
	expect.True(t, errors.Is(errors.Precondition, err))
	expect.HasSubstr(t, err.Error(), "accuracy")
}

func TestMapevalMissingScoreStats(t *testing.T) {
	e, r := mapevalEnv(t, statsTSV)
	defer e.cleanup()
	delete(r.outputs[pipeline.StageMapeval], "score.stats.snp1kg.tsv")
	var out bytes.Buffer
	h := e.harness(r, &out)
	rep, err := h.Run(context.Background(), mapevalScenario())
	assert.NoError(t, err)
	expect.True(t, rep.Passed())
	expect.HasSubstr(t, out.String(), "cactus vs. input")
	expect.False(t, strings.Contains(out.String(), "vs. snp1kg"))
}

func TestMapevalReadCount(t *testing.T) {
	e, r := mapevalEnv(t, statsTSV)
	defer e.cleanup()
	h := e.harness(r, &bytes.Buffer{})
	s := mapevalScenario()
	s.Reads = 2000
	rep, err := h.Run(context.Background(), s)
	expect.True(t, errors.Is(errors.Precondition, err))
	for _, m := range rep.Failures() {
		expect.True(t, m.Metric == verify.MetricReads || m.Metric == verify.MetricScoreReads, m.String())
	}
}

func TestMapevalThreads(t *testing.T) {
	e, r := mapevalEnv(t, statsTSV)
	defer e.cleanup()
	for _, name := range []string{"cactus-MHC.vg", "cactus_all_samples-MHC.vg", "1kg_hg38-MHC.vcf.gz"} {
		e.write(t, filepath.Join(e.input, name), name)
	}
	h := e.harness(r, &bytes.Buffer{})
	h.Config.Teardown = false
	s := mapevalScenario()
	s.SourcePaths, s.Sample = nil, "NA12878"

	_, err := h.Run(context.Background(), s)
	assert.NoError(t, err)
	l := pipeline.Layout{WorkDir: filepath.Join(e.work, s.Name)}
	tag := "sim-MHC-cactus"

	// The family sample's variants are only in the all-samples graph.
	_, err = os.Stat(l.OutFile(tag, "cactus_all_samples-MHC.vg"))
	assert.NoError(t, err)
	var sim pipeline.Command
	for _, cmd := range r.cmds {
		if cmd.Stage == pipeline.StageSim {
			sim = cmd
		}
	}
	expect.EQ(t, sim.Positional[1:3], []string{l.OutFile(tag, "thread_0.xg"), l.OutFile(tag, "thread_1.xg")})
	annotate, _ := sim.Flags.Values("--annotate_xg")
	expect.EQ(t, annotate, []string{l.OutFile(tag, pipeline.GPBWTIndexName+".xg")})
	expect.False(t, sim.Flags.Has("--path"))
}

func TestSimFASTQ(t *testing.T) {
	h := &Harness{Config: Config{InputStore: "https://inputs.example.com/bakeoff"}}
	s := Scenario{SimFASTQ: "platinum_NA12878_MHC.fq.gz"}
	expect.EQ(t, h.simFASTQ(s), "https://inputs.example.com/bakeoff/platinum_NA12878_MHC.fq.gz")
	s.SimFASTQ = GIABFASTQ
	expect.EQ(t, h.simFASTQ(s), GIABFASTQ)
	s.SimFASTQ = "/data/reads.fq.gz"
	expect.EQ(t, h.simFASTQ(s), "/data/reads.fq.gz")
	s.InputStore = YeastInputStore
	s.SimFASTQ = "reads.fq"
	expect.EQ(t, h.simFASTQ(s), YeastInputStore+"/reads.fq")
}

func TestPlotTablesWithControls(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "plots")
	defer cleanup()
	ctx := context.Background()
	l := pipeline.Layout{WorkDir: dir}
	tag := "sim-MHC-snp1kg"

	var table, scores bytes.Buffer
	table.WriteString("correct\tmq\taligner\tread\n")
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&table, "1\t60\tcactus-se\tr%d\n", i)
		fmt.Fprintf(&scores, "r%d, -1, 9, 10\n", i)
	}
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&table, "1\t60\tsnp1kg-se\ts%d\n", i)
	}
	assert.NoError(t, os.MkdirAll(l.OutStore(tag), 0777))
	assert.NoError(t, ioutil.WriteFile(l.OutFile(tag, position.ResultsName), table.Bytes(), 0644))
	assert.NoError(t, ioutil.WriteFile(l.OutFile(tag, "cactus.compare.primary.scores"), scores.Bytes(), 0644))

	tables, err := plotTables(ctx, l, tag, "cactus", "")
	assert.NoError(t, err)
	expect.EQ(t, tables, []plotTable{
		{position.NoControlName, ""},
		{position.ControlName, ".control"},
		{position.FilteredName(position.ControlName), ".control.primary.filter"},
	})
	noControl, err := position.ReadFile(ctx, l.OutFile(tag, position.NoControlName))
	assert.NoError(t, err)
	expect.EQ(t, len(noControl.Rows), 10)
	_, err = os.Stat(l.OutFile(tag, position.FilteredName(position.NoControlName)))
	expect.True(t, os.IsNotExist(err))
	filtered, err := position.ReadFile(ctx, l.OutFile(tag, position.FilteredName(position.ControlName)))
	assert.NoError(t, err)
	expect.EQ(t, len(filtered.Rows), 10)
}

func TestPlotFailureIsNotFatal(t *testing.T) {
	e, r := mapevalEnv(t, statsTSV)
	defer e.cleanup()
	h := e.harness(r, &bytes.Buffer{})
	h.Config.ScriptDir = filepath.Join(e.dir, "missing")
	rep, err := h.Run(context.Background(), mapevalScenario())
	assert.NoError(t, err)
	expect.True(t, rep.Passed())
	for _, name := range r.names() {
		expect.True(t, name != "Rscript")
	}
}

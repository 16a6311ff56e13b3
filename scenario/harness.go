// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package scenario

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/vgci/artifact"
	"github.com/grailbio/vgci/ledger"
	"github.com/grailbio/vgci/pipeline"
	"github.com/grailbio/vgci/report"
	"github.com/grailbio/vgci/stats"
	"github.com/grailbio/vgci/tally"
	"github.com/grailbio/vgci/verify"
)

// Harness runs scenarios one at a time.
type Harness struct {
	Config Config
	Store  *artifact.Store
	Runner pipeline.Runner
	// Tally counts outcomes. New creates one.
	Tally *tally.Tally
	// Ledger, if set, records every outcome and measurement.
	Ledger *ledger.Ledger
	// Out receives report blocks. Nil means os.Stdout.
	Out io.Writer
}

// New returns a harness that runs the pipeline as local processes.
func New(cfg Config, store *artifact.Store) *Harness {
	return &Harness{
		Config: cfg,
		Store:  store,
		Runner: pipeline.ExecRunner{},
		Tally:  tally.New(),
	}
}

func (h *Harness) out() io.Writer {
	if h.Out == nil {
		return os.Stdout
	}
	return h.Out
}

func (h *Harness) baseline() artifact.Baseline {
	return artifact.Baseline{Store: h.Store, Root: h.Config.Baseline}
}

// input returns the locator of a file in the scenario's input store.
func (h *Harness) input(s Scenario, name string) string {
	store := h.Config.InputStore
	if s.InputStore != "" {
		store = s.InputStore
	}
	return artifact.Join(store, name)
}

// simFASTQ resolves a relative training FASTQ against the input store.
func (h *Harness) simFASTQ(s Scenario) string {
	if s.SimFASTQ == "" || artifact.Parse(s.SimFASTQ).Scheme != artifact.Local || filepath.IsAbs(s.SimFASTQ) {
		return s.SimFASTQ
	}
	return h.input(s, s.SimFASTQ)
}

// workDir creates the scenario's private work directory. It is always an
// absolute path, since external tools resolve paths from other directories.
func (h *Harness) workDir(s Scenario) (string, error) {
	if h.Config.WorkDir == "" {
		dir, err := ioutil.TempDir("", "vgci-"+s.Name+"-")
		if err != nil {
			return "", errors.E("create work dir", err)
		}
		return dir, nil
	}
	dir, err := filepath.Abs(filepath.Join(h.Config.WorkDir, s.Name))
	if err != nil {
		return "", errors.E(fmt.Sprintf("work dir of %s", s.Name), err)
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return "", errors.E(fmt.Sprintf("create work dir %s", dir), err)
	}
	return dir, nil
}

func (h *Harness) teardown(dir string) {
	if !h.Config.Teardown {
		log.Printf("keeping work dir %s", dir)
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		log.Error.Printf("remove work dir %s: %v", dir, err)
	}
}

// Run runs one scenario within its timeout, verifies it if so configured,
// and records the outcome. The returned report is nil when verification did
// not run. The error is non-nil if the scenario failed; it is an
// errors.Timeout error if the scenario ran out of time and an
// errors.Precondition error if verification found regressions.
func (h *Harness) Run(ctx context.Context, s Scenario) (*verify.Report, error) {
	tag, err := s.Tag()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rep, err := h.run(ctx, s, tag)
	h.record(ctx, s, tag, rep, err, time.Since(start))
	return rep, err
}

func (h *Harness) run(parent context.Context, s Scenario, tag string) (rep *verify.Report, err error) {
	dir, err := h.workDir(s)
	if err != nil {
		return nil, err
	}
	defer h.teardown(dir)
	log.Printf("scenario %s (%s): start in %s", s.Name, tag, dir)

	ctx, cancel := context.WithTimeout(parent, s.Timeout)
	defer cancel()
	l := pipeline.Layout{WorkDir: dir}
	switch s.Kind {
	case Bakeoff:
		err = h.runBakeoff(ctx, l, s, tag)
	case Mapeval:
		err = h.runMapeval(ctx, l, s, tag)
	default:
		err = s.invalid("unknown kind %q", s.Kind)
	}
	if err == nil && h.Config.Verify {
		rep, err = h.verify(ctx, l, s, tag)
		if err == nil {
			err = rep.Err()
		}
	}
	if err != nil && ctx.Err() == context.DeadlineExceeded && parent.Err() == nil && !errors.Is(errors.Timeout, err) {
		err = errors.E(errors.Timeout, fmt.Sprintf("scenario %s exceeded %s", s.Name, s.Timeout), err)
	}
	return rep, err
}

func (h *Harness) record(ctx context.Context, s Scenario, tag string, rep *verify.Report, err error, d time.Duration) {
	result := tally.Pass
	switch {
	case err == nil:
		log.Printf("scenario %s: passed in %s", s.Name, d)
	case errors.Is(errors.Timeout, err):
		result = tally.Timeout
		log.Error.Printf("scenario %s: timed out after %s: %v", s.Name, d, err)
	default:
		result = tally.Fail
		log.Error.Printf("scenario %s: failed after %s: %v", s.Name, d, err)
	}
	if h.Tally != nil {
		h.Tally.Record(s.Name, result, d)
	}
	if h.Ledger == nil {
		return
	}
	if rep != nil {
		if lerr := h.Ledger.RecordMeasurements(ctx, s.Name, tag, rep.Measurements); lerr != nil {
			log.Error.Printf("scenario %s: %v", s.Name, lerr)
		}
	}
	o := ledger.Outcome{Scenario: s.Name, Tag: tag, Result: result, Duration: d}
	if err != nil {
		o.Error = err.Error()
	}
	if lerr := h.Ledger.RecordOutcome(ctx, o); lerr != nil {
		log.Error.Printf("scenario %s: %v", s.Name, lerr)
	}
}

// skip records a scenario that was not run.
func (h *Harness) skip(ctx context.Context, s Scenario) {
	log.Printf("scenario %s: skipped: %s", s.Name, s.SkipReason)
	tag, _ := s.Tag()
	if h.Tally != nil {
		h.Tally.Record(s.Name, tally.Skip, 0)
	}
	if h.Ledger != nil {
		if err := h.Ledger.RecordOutcome(ctx, ledger.Outcome{Scenario: s.Name, Tag: tag, Result: tally.Skip}); err != nil {
			log.Error.Printf("scenario %s: %v", s.Name, err)
		}
	}
}

// RunAll runs the scenarios in order. Skipped scenarios are recorded but
// not run unless runSkipped is set. If configured, the tally is written to
// the metrics file at the end. The error summarizes the failures.
func (h *Harness) RunAll(ctx context.Context, scenarios []Scenario, runSkipped bool) error {
	if h.Tally == nil {
		h.Tally = tally.New()
	}
	for _, s := range scenarios {
		if ctx.Err() != nil {
			break
		}
		if s.Skip && !runSkipped {
			h.skip(ctx, s)
			continue
		}
		h.Run(ctx, s) // nolint: errcheck
	}
	log.Printf("%s", h.Tally.Summary())
	if h.Config.MetricsPath != "" {
		if err := h.Tally.WriteTextfile(h.Config.MetricsPath); err != nil {
			log.Error.Printf("write metrics %s: %v", h.Config.MetricsPath, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return errors.E(errors.Canceled, "harness interrupted", err)
	}
	if !h.Tally.OK() {
		return errors.E(errors.Precondition, h.Tally.Summary())
	}
	return nil
}

// Verify checks the results of a previous run of s left in workDir, without
// running the pipeline.
func (h *Harness) Verify(ctx context.Context, s Scenario, workDir string) (*verify.Report, error) {
	tag, err := s.Tag()
	if err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, errors.E(fmt.Sprintf("work dir %s", workDir), err)
	}
	rep, err := h.verify(ctx, pipeline.Layout{WorkDir: dir}, s, tag)
	if err != nil {
		return nil, err
	}
	return rep, rep.Err()
}

func (h *Harness) verify(ctx context.Context, l pipeline.Layout, s Scenario, tag string) (*verify.Report, error) {
	th := s.Thresholds(h.Config.Thresholds())
	if s.Kind == Bakeoff {
		return h.verifyF1(ctx, l, tag, BakeoffSample, th.F1)
	}
	h.plots(ctx, l, tag, s.PositiveControl, s.NegativeControl)
	return h.verifyMapeval(ctx, l, s, tag, th)
}

func (h *Harness) runBakeoff(ctx context.Context, l pipeline.Layout, s Scenario, tag string) error {
	chrom, offset, _ := pipeline.Coords(s.Region)
	base := s.Graph + "-" + s.Region
	var gcsa string
	if s.SkipIndexing {
		gcsa = h.input(s, base+".gcsa")
	}
	var extra pipeline.Args
	extra = extra.Set("--vcf_offsets", fmt.Sprint(offset)).Raw(s.MiscOpts...)
	cmd := h.Config.Options().Run(l, pipeline.RunParams{
		Tag:         tag,
		Sample:      BakeoffSample,
		Chrom:       chrom,
		Graph:       h.input(s, base+".vg"),
		GCSA:        gcsa,
		FASTQ:       h.input(s, fmt.Sprintf("platinum_%s_%s.fq.gz", BakeoffSample, s.Region)),
		TruthVCF:    h.input(s, fmt.Sprintf("platinum_%s_%s.vcf.gz", BakeoffSample, s.Region)),
		Fasta:       h.input(s, fmt.Sprintf("chr%s.fa.gz", chrom)),
		Interleaved: true,
		Multipath:   s.Multipath,
		Extra:       extra,
	})
	return h.Runner.Run(ctx, cmd)
}

// indexedGraphs returns the distinct graphs a mapeval scenario indexes,
// sorted.
func indexedGraphs(s Scenario) []string {
	seen := map[string]bool{s.Graph: true}
	graphs := []string{s.Graph}
	for _, g := range s.TestGraphs {
		if !seen[g] {
			seen[g] = true
			graphs = append(graphs, g)
		}
	}
	sort.Strings(graphs)
	return graphs
}

// familySamples are the CEPH family members the bakeoff graphs leave out;
// their variants are only in the <graph>_all_samples graphs.
var familySamples = func() map[string]bool {
	m := map[string]bool{}
	for n := 77; n <= 93; n++ {
		m[fmt.Sprintf("NA128%d", n)] = true
	}
	return m
}()

func (h *Harness) runMapeval(ctx context.Context, l pipeline.Layout, s Scenario, tag string) error {
	opts := h.Config.Options()
	chrom, _, _ := pipeline.Coords(s.Region)
	for _, g := range indexedGraphs(s) {
		base := g + "-" + s.Region
		cmd, fetches := opts.Index(l, pipeline.IndexParams{
			Tag:   tag,
			Chrom: chrom,
			Graph: h.input(s, base+".vg"),
			GCSA:  h.input(s, base+".gcsa"),
			Name:  base,
		})
		if err := pipeline.Prefetch(ctx, h.Store, fetches); err != nil {
			return err
		}
		if err := h.Runner.Run(ctx, cmd); err != nil {
			return err
		}
	}

	var (
		xg     string
		simXGs []string
	)
	if s.Sample != "" {
		graph := fmt.Sprintf("%s-%s.vg", s.Graph, s.Region)
		if familySamples[s.Sample] {
			graph = fmt.Sprintf("%s_all_samples-%s.vg", s.Graph, s.Region)
		}
		plan := opts.PlanThreads(l, pipeline.ThreadParams{
			Tag:    tag,
			Sample: s.Sample,
			Graph:  h.input(s, graph),
			VCF:    h.input(s, fmt.Sprintf("1kg_%s-%s.vcf.gz", s.Assembly, s.Region)),
			Chrom:  chrom,
		})
		if err := plan.Run(ctx, h.Runner, h.Store); err != nil {
			return err
		}
		xg, simXGs = plan.XG, plan.Threads[:]
	} else {
		xg = l.OutFile(tag, fmt.Sprintf("%s-%s.xg", s.Graph, s.Region))
		simXGs = []string{xg}
	}

	indexBases := make([]string, len(s.TestGraphs))
	for i, g := range s.TestGraphs {
		indexBases[i] = l.OutFile(tag, g+"-"+s.Region)
	}
	fastq := h.simFASTQ(s)
	sim := opts.Sim(l, pipeline.SimParams{
		Tag:        tag,
		XGs:        simXGs,
		Reads:      s.Reads,
		Options:    s.SimOpts,
		FASTQ:      fastq,
		AnnotateXG: xg,
		Paths:      s.SourcePaths,
	})
	plan := pipeline.PlanMapeval(l, pipeline.MapevalParams{
		Tag:           tag,
		Fasta:         h.input(s, s.Region+".fa"),
		IndexBases:    indexBases,
		Names:         s.TestGraphs,
		ScoreBaseline: s.ScoreBaseline,
		Multipath:     s.Multipath,
		PairedOnly:    s.PairedOnly,
		SimFASTQ:      fastq,
	})
	return pipeline.RunAll(ctx, h.Runner, sim, opts.Mapeval(l, tag, plan))
}

// verifyF1 checks a bakeoff's variant calls and prints the vcfeval summary.
func (h *Harness) verifyF1(ctx context.Context, l pipeline.Layout, tag, sample string, threshold float64) (*verify.Report, error) {
	name := "vcfeval_output_f1.txt"
	if sample != "" {
		name = sample + "_" + name
	}
	path := l.OutFile(tag, name)
	text, err := h.Store.ReadText(ctx, path)
	if err != nil {
		return nil, err
	}
	f1, err := stats.ParseF1(text)
	if err != nil {
		return nil, errors.E(path, err)
	}
	var baseF1 float64
	baseText, found, err := h.baseline().Lookup(ctx, tag, name)
	if err != nil {
		return nil, err
	}
	if found {
		if baseF1, err = stats.ParseF1(baseText); err != nil {
			return nil, errors.E(h.baseline().Locator(tag, name), err)
		}
	}
	summaryPath := strings.TrimSuffix(path, "f1.txt") + "summary.txt"
	summary, err := h.Store.ReadText(ctx, summaryPath)
	if err != nil {
		return nil, err
	}
	if err := report.WriteBlock(h.out(), report.VcfevalName, report.F1SummaryRows(summary, baseF1, threshold)); err != nil {
		return nil, errors.E("write vcfeval report", err)
	}
	return verify.CheckF1(f1, baseF1, found, threshold), nil
}

// verifyMapeval checks a mapping evaluation's stats and score comparisons
// and prints the results table.
func (h *Harness) verifyMapeval(ctx context.Context, l pipeline.Layout, s Scenario, tag string, th verify.Thresholds) (*verify.Report, error) {
	path := l.OutFile(tag, "stats.tsv")
	text, err := h.Store.ReadText(ctx, path)
	if err != nil {
		return nil, err
	}
	current, err := stats.Parse(text, 1)
	if err != nil {
		return nil, errors.E(path, err)
	}
	baseText, err := h.baseline().Fetch(ctx, tag, "stats.tsv")
	if err != nil {
		return nil, err
	}
	baseline, err := stats.Parse(baseText, 1)
	if err != nil {
		return nil, errors.E(h.baseline().Locator(tag, "stats.tsv"), err)
	}
	rows := report.MapevalRows(current, baseline, s.PositiveControl, s.NegativeControl)
	if err := report.WriteBlock(h.out(), report.MapevalName(s.PositiveControl, s.NegativeControl), rows); err != nil {
		return nil, errors.E("write mapeval report", err)
	}
	rep := verify.CheckMapeval(s.Reads, current, baseline, th)

	against := []string{verify.InputCondition}
	if s.ScoreBaseline != "" {
		against = append(against, s.ScoreBaseline)
	}
	for _, cond := range against {
		r, err := h.verifyScores(ctx, l, s, tag, cond, th)
		if err != nil {
			return nil, err
		}
		if r != nil {
			rep.Merge(r)
		}
	}
	return rep, nil
}

// verifyScores runs the score regression check against one condition. It
// returns nil if the pipeline did not compare scores against cond.
func (h *Harness) verifyScores(ctx context.Context, l pipeline.Layout, s Scenario, tag, cond string, th verify.Thresholds) (*verify.Report, error) {
	name := fmt.Sprintf("score.stats.%s.tsv", cond)
	path := l.OutFile(tag, name)
	if _, err := file.Stat(ctx, path); artifact.IsNotExist(err) {
		log.Printf("%s: no score comparison against %s", tag, cond)
		return nil, nil
	}
	text, err := h.Store.ReadText(ctx, path)
	if err != nil {
		return nil, err
	}
	current, err := stats.ParseScoreStats(text, 1)
	if err != nil {
		return nil, errors.E(path, err)
	}
	var baseline stats.ScoreTable
	baseText, found, err := h.baseline().Lookup(ctx, tag, name)
	if err != nil {
		return nil, err
	}
	if found {
		if baseline, err = stats.ParseScoreStats(baseText, 1); err != nil {
			return nil, errors.E(h.baseline().Locator(tag, name), err)
		}
	}
	records := func(method, against string, fn func(stats.ScoreRecord)) error {
		rc, err := h.Store.Open(ctx, l.OutFile(tag, fmt.Sprintf("%s.compare.%s.scores", method, against)))
		if err != nil {
			return err
		}
		defer rc.Close() // nolint: errcheck
		return stats.ReadScoreRecords(rc, fn)
	}
	return verify.CheckScores(verify.ScoreCheck{
		Reads:      s.Reads,
		Against:    cond,
		ReadSource: s.Graph,
		Current:    current,
		Baseline:   baseline,
		Records:    records,
		Out:        h.out(),
	}, th), nil
}

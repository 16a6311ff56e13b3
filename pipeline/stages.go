// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/vgci/artifact"
)

// Stage names of the pipeline executable.
const (
	StageIndex   = "index"
	StageRun     = "run"
	StageSim     = "sim"
	StageMapeval = "mapeval"
)

const (
	// SimChunks is the number of simulation shards. The simulation seed only
	// reproduces the same reads for the same chunk count, so it never varies.
	SimChunks = 8
	// SimSeed is the simulation seed.
	SimSeed = 8
	// MapevalThreshold is the distance, in bases, within which a realigned
	// read counts as placed correctly.
	MapevalThreshold = 200
)

// Options are the settings shared by every stage invocation.
type Options struct {
	// Executable is the pipeline binary, "toil-vg" by default.
	Executable string
	// VGDocker overrides the pipeline's vg container image.
	VGDocker string
	// Container selects the container system ("Docker", "Singularity",
	// "None"). Empty means the pipeline default.
	Container string
	// Cores is the single-node core budget.
	Cores int
}

// DefaultOptions are used for fields left unset.
var DefaultOptions = Options{
	Executable: "toil-vg",
	Cores:      8,
}

func (o Options) executable() string {
	if o.Executable == "" {
		return DefaultOptions.Executable
	}
	return o.Executable
}

func (o Options) cores() int {
	if o.Cores <= 0 {
		return DefaultOptions.Cores
	}
	return o.Cores
}

func (o Options) common() Args {
	var a Args
	return a.Switch("--realTimeLogging").
		Switch("--logInfo").
		SetIf("--vg_docker", o.VGDocker).
		SetIf("--container", o.Container)
}

// Command is one external process invocation.
type Command struct {
	// Stage is the pipeline stage, or "" for a helper tool.
	Stage string
	// Name is the executable.
	Name string
	// Positional arguments follow the stage name.
	Positional []string
	// Flags follow the positional arguments.
	Flags Args
	// Dir is the working directory; empty means the current one.
	Dir string
	// Stdout, if set, receives the process's standard output.
	Stdout string
	// Append appends to Stdout instead of truncating it.
	Append bool
}

// Argv renders the arguments following the executable name.
func (c Command) Argv() []string {
	var argv []string
	if c.Stage != "" {
		argv = append(argv, c.Stage)
	}
	argv = append(argv, c.Positional...)
	return append(argv, c.Flags.Strings()...)
}

// String renders the command for logging.
func (c Command) String() string {
	parts := []string{c.Name}
	for _, arg := range c.Argv() {
		if arg == "" || strings.ContainsAny(arg, " \t\"'") {
			arg = strconv.Quote(arg)
		}
		parts = append(parts, arg)
	}
	s := strings.Join(parts, " ")
	if c.Stdout != "" {
		if c.Append {
			s += " >> " + c.Stdout
		} else {
			s += " > " + c.Stdout
		}
	}
	return s
}

// Fetch copies a prebuilt input into an output store.
type Fetch struct {
	Src, Dst string
}

// Prefetch copies all the files in parallel.
func Prefetch(ctx context.Context, store *artifact.Store, fetches []Fetch) error {
	return traverse.Each(len(fetches), func(i int) error {
		log.Printf("download %s -> %s", fetches[i].Src, fetches[i].Dst)
		return store.CopyTo(ctx, fetches[i].Src, fetches[i].Dst)
	})
}

// IndexParams configure an index stage.
type IndexParams struct {
	Tag string
	// Chrom restricts indexing to one chromosome; empty indexes everything.
	Chrom string
	// Graph is the input graph locator.
	Graph string
	// XG and GCSA are prebuilt index locators. When set they are copied into
	// the output store and the pipeline skips building them.
	XG, GCSA string
	// Name is the base name of the produced index files.
	Name string
	// Extra options are appended last.
	Extra Args
}

// Index plans an index stage. The returned fetches must complete before the
// command runs.
func (o Options) Index(l Layout, p IndexParams) (Command, []Fetch) {
	out := l.OutStore(p.Tag)
	var fetches []Fetch
	flags := o.common().
		SetIf("--chroms", p.Chrom).
		SetIf("--graphs", p.Graph)
	if p.XG != "" {
		flags = flags.Switch("--skip_xg")
		fetches = append(fetches, Fetch{p.XG, filepath.Join(out, artifact.Base(p.XG))})
	}
	if p.GCSA != "" && !p.Extra.Has("--skip_gcsa") {
		flags = flags.Switch("--skip_gcsa")
		base := artifact.Base(p.GCSA)
		fetches = append(fetches,
			Fetch{p.GCSA, filepath.Join(out, base)},
			Fetch{p.GCSA + ".lcp", filepath.Join(out, base+".lcp")})
	}
	flags = flags.Set("--index_name", p.Name)
	flags = append(flags, p.Extra...)
	return Command{
		Stage:      StageIndex,
		Name:       o.executable(),
		Positional: []string{l.JobStore(p.Tag), out},
		Flags:      flags,
	}, fetches
}

// RunParams configure a map-and-call stage. Empty inputs are left to the
// pipeline to compute or omit.
type RunParams struct {
	Tag    string
	Sample string
	Chrom  string
	Graph  string
	XG     string
	GCSA   string
	FASTQ  string
	// TruthVCF enables variant-call evaluation against Fasta.
	TruthVCF    string
	Fasta       string
	Interleaved bool
	Multipath   bool
	Extra       Args
}

// Run plans a map-and-call stage.
func (o Options) Run(l Layout, p RunParams) Command {
	cores := o.cores()
	flags := o.common().
		SetIf("--chroms", p.Chrom).
		SetIf("--graphs", p.Graph).
		SetIf("--xg_index", p.XG).
		SetIf("--gcsa_index", p.GCSA).
		SetIf("--fastq", p.FASTQ)
	if p.TruthVCF != "" {
		flags = flags.Set("--vcfeval_baseline", p.TruthVCF).
			Set("--vcfeval_fasta", p.Fasta).
			Set("--vcfeval_opts", " --ref-overlap")
	}
	flags = flags.SwitchIf(p.Interleaved, "--interleaved").
		SwitchIf(p.Multipath, "--multipath")
	flags = append(flags, p.Extra...)
	flags = flags.Switch("--single_reads_chunk").
		Set("--gcsa_index_cores", strconv.Itoa(cores)).
		Set("--kmers_cores", strconv.Itoa(cores)).
		Set("--alignment_cores", strconv.Itoa(cores)).
		Set("--calling_cores", strconv.Itoa(maxInt(1, cores/4))).
		Set("--call_chunk_cores", strconv.Itoa(maxInt(1, cores/2))).
		Set("--vcfeval_cores", strconv.Itoa(cores))
	return Command{
		Stage:      StageRun,
		Name:       o.executable(),
		Positional: []string{l.JobStore(p.Tag), p.Sample, l.OutStore(p.Tag)},
		Flags:      flags,
	}
}

// SimParams configure a read simulation stage.
type SimParams struct {
	Tag string
	// XGs are the indexes reads are simulated from.
	XGs []string
	// Reads is the total number of reads; the pipeline is asked for half as
	// many pairs' worth.
	Reads int
	// Options is passed verbatim to the simulator.
	Options string
	// FASTQ trains the simulator's error model.
	FASTQ string
	// AnnotateXG annotates the true positions.
	AnnotateXG string
	// Paths restricts simulation to the named embedded paths.
	Paths []string
}

// Sim plans a read simulation stage.
func (o Options) Sim(l Layout, p SimParams) Command {
	positional := []string{l.JobStore(p.Tag)}
	positional = append(positional, p.XGs...)
	positional = append(positional, strconv.Itoa(p.Reads/2), l.OutStore(p.Tag))
	var flags Args
	flags = flags.Switch("--gam")
	flags = append(flags, o.common()...)
	flags = flags.Set("--maxCores", strconv.Itoa(o.cores())).
		Set("--sim_chunks", strconv.Itoa(SimChunks)).
		Set("--seed", strconv.Itoa(SimSeed)).
		SetIf("--sim_opts", p.Options).
		SetIf("--fastq", p.FASTQ).
		Set("--annotate_xg", p.AnnotateXG)
	for _, path := range p.Paths {
		flags = flags.Set("--path", path)
	}
	return Command{
		Stage:      StageSim,
		Name:       o.executable(),
		Positional: positional,
		Flags:      flags,
	}
}

// MapevalParams describe a realignment evaluation.
type MapevalParams struct {
	Tag string
	// Fasta is the linear reference for the bwa control.
	Fasta string
	// IndexBases are <base>.xg, <base>.gcsa and <base>.gcsa.lcp triples, one
	// per evaluated graph.
	IndexBases []string
	// Names label the realignments, parallel to IndexBases.
	Names []string
	// ScoreBaseline, if set, is the name all realignment scores are compared
	// against.
	ScoreBaseline string
	Multipath     bool
	PairedOnly    bool
	// SimFASTQ is the FASTQ used to train simulation, if any.
	SimFASTQ string
}

// MapevalPlan is the fully derived input set of a mapeval stage.
type MapevalPlan struct {
	Truth         string
	BWA           bool
	Fasta         string
	IndexBases    []string
	GAMNames      []string
	InputReads    string
	Threshold     int
	CompareScores string
	Multipath     bool
	IgnoreQuals   bool
	PairedOnly    bool
}

// PlanMapeval derives the evaluation plan. Truth positions and simulated
// reads are read from the output store of the preceding sim stage. Base
// qualities are ignored for multipath mapping unless the simulator was
// trained on a FASTQ with real qualities.
func PlanMapeval(l Layout, p MapevalParams) MapevalPlan {
	return MapevalPlan{
		Truth:         l.OutFile(p.Tag, "true.pos"),
		BWA:           true,
		Fasta:         p.Fasta,
		IndexBases:    p.IndexBases,
		GAMNames:      p.Names,
		InputReads:    l.OutFile(p.Tag, "sim.gam"),
		Threshold:     MapevalThreshold,
		CompareScores: p.ScoreBaseline,
		Multipath:     p.Multipath,
		IgnoreQuals:   p.Multipath && p.SimFASTQ == "",
		PairedOnly:    p.PairedOnly,
	}
}

// Inputs lists every file the plan reads.
func (m MapevalPlan) Inputs() []string {
	inputs := []string{m.Truth, m.InputReads}
	if m.Fasta != "" {
		inputs = append(inputs, m.Fasta)
	}
	for _, base := range m.IndexBases {
		inputs = append(inputs, base+".xg", base+".gcsa", base+".gcsa.lcp")
	}
	return inputs
}

// Mapeval plans a realignment evaluation stage.
func (o Options) Mapeval(l Layout, tag string, m MapevalPlan) Command {
	cores := strconv.Itoa(o.cores())
	flags := o.common().
		Set("--truth", m.Truth).
		SwitchIf(m.BWA, "--bwa").
		SetIf("--fasta", m.Fasta).
		Set("--index-bases", m.IndexBases...).
		Set("--gam-names", m.GAMNames...).
		Set("--gam_input_reads", m.InputReads).
		Set("--mapeval-threshold", strconv.Itoa(m.Threshold)).
		SetIf("--compare-gam-scores", m.CompareScores).
		SwitchIf(m.Multipath, "--multipath").
		SwitchIf(m.IgnoreQuals, "--ignore-quals").
		SwitchIf(m.PairedOnly, "--paired-only").
		Set("--alignment_cores", cores).
		Set("--maxCores", cores).
		Switch("--single_reads_chunk")
	return Command{
		Stage:      StageMapeval,
		Name:       o.executable(),
		Positional: []string{l.JobStore(tag), l.OutStore(tag)},
		Flags:      flags,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

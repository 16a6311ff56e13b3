// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/vgci/artifact"
)

// GPBWTIndexName is the base name of the haplotype-aware xg index.
const GPBWTIndexName = "index-gpbwt"

// ThreadParams configure the extraction of a sample's two haplotypes from a
// graph.
type ThreadParams struct {
	Tag    string
	Sample string
	// Graph is the locator of a graph containing the sample's variants.
	Graph string
	// VCF holds the phased variants of the sample (among others).
	VCF string
	// Chrom is the chromosome the threads are named after.
	Chrom string
}

// ThreadPlan extracts each haplotype of a sample as its own graph and
// indexes it, so that reads can be simulated from the sample's genome. Only
// one chromosome is supported.
type ThreadPlan struct {
	// Fetches bring the graph into the output store and the VCF into the
	// work directory.
	Fetches []Fetch
	// Subset reduces the VCF to the sample and indexes the result.
	Subset []Command
	// GPBWT builds an xg holding the sample's haplotype threads.
	GPBWT Command
	// Extract holds, per haplotype, the commands that cut the thread out of
	// the graph, and Index the command that indexes it.
	Extract [2][]Command
	Index   [2]Command

	// XG is the haplotype-aware index; Threads are the per-haplotype
	// indexes.
	XG      string
	Threads [2]string

	vcf      string
	scratch  [2][]string
	workVCFs []string
}

// PlanThreads plans haplotype extraction.
func (o Options) PlanThreads(l Layout, p ThreadParams) ThreadPlan {
	out := l.OutStore(p.Tag)
	outName := l.OutStoreName(p.Tag)
	vcfBase := artifact.Base(p.VCF)
	unfiltered := filepath.Join(l.WorkDir, "uf-"+vcfBase)
	filtered := filepath.Join(l.WorkDir, "f-"+vcfBase)
	if !strings.HasSuffix(filtered, ".gz") {
		filtered += ".gz"
	}
	graphBase := artifact.Base(p.Graph)

	plan := ThreadPlan{
		Fetches: []Fetch{
			{p.Graph, filepath.Join(out, graphBase)},
			{p.VCF, unfiltered},
		},
		Subset: []Command{
			{
				Name:       "bcftools",
				Positional: []string{"view", filepath.Base(unfiltered), "-s", p.Sample, "-O", "z"},
				Dir:        l.WorkDir,
				Stdout:     filtered,
			},
			{
				Name:       "tabix",
				Positional: []string{"-f", "-p", "vcf", filepath.Base(filtered)},
				Dir:        l.WorkDir,
			},
		},
		XG:       filepath.Join(out, GPBWTIndexName+".xg"),
		vcf:      unfiltered,
		workVCFs: []string{filtered, filtered + ".tbi"},
	}
	var phasing Args
	phasing = phasing.Set("--vcf_phasing", filtered).
		Switch("--skip_gcsa").
		Set("--xg_index_cores", strconv.Itoa(o.cores()))
	plan.GPBWT, _ = o.Index(l, IndexParams{
		Tag:   p.Tag,
		Chrom: p.Chrom,
		Graph: p.Graph,
		Name:  GPBWTIndexName,
		Extra: phasing,
	})

	for hap := 0; hap < 2; hap++ {
		thread := filepath.Join(l.WorkDir, fmt.Sprintf("thread_%d.vg", hap))
		dropped := thread + ".drop"
		plan.Extract[hap] = []Command{
			// The graph without its paths...
			{
				Name:       "vg",
				Positional: []string{"mod", "-D", filepath.Join(outName, graphBase)},
				Dir:        l.WorkDir,
				Stdout:     thread,
			},
			// ...plus the thread path from the gPBWT index...
			{
				Name: "vg",
				Positional: []string{"find", "-q", fmt.Sprintf("_thread_%s_%s_%d_0", p.Sample, p.Chrom, hap),
					"-x", filepath.Join(outName, GPBWTIndexName+".xg")},
				Dir:    l.WorkDir,
				Stdout: thread,
				Append: true,
			},
			// ...trimmed down to the nodes on the thread.
			{
				Name:       "vg",
				Positional: []string{"mod", "-N", filepath.Base(thread)},
				Dir:        l.WorkDir,
				Stdout:     dropped,
			},
		}
		name := fmt.Sprintf("thread_%d", hap)
		var skip Args
		plan.Index[hap], _ = o.Index(l, IndexParams{
			Tag:   p.Tag,
			Chrom: p.Chrom,
			Graph: dropped,
			Name:  name,
			Extra: skip.Switch("--skip_gcsa"),
		})
		plan.Threads[hap] = filepath.Join(out, name+".xg")
		plan.scratch[hap] = []string{thread, dropped}
	}
	return plan
}

// Run executes the plan. Intermediate files are removed as soon as they are
// consumed.
func (t ThreadPlan) Run(ctx context.Context, r Runner, store *artifact.Store) error {
	if err := Prefetch(ctx, store, t.Fetches); err != nil {
		return err
	}
	if err := RunAll(ctx, r, t.Subset...); err != nil {
		return err
	}
	removeAll(t.vcf)
	if err := r.Run(ctx, t.GPBWT); err != nil {
		return err
	}
	removeAll(t.workVCFs...)
	for hap := range t.Extract {
		if err := RunAll(ctx, r, t.Extract[hap]...); err != nil {
			return err
		}
		if err := r.Run(ctx, t.Index[hap]); err != nil {
			return err
		}
		removeAll(t.scratch[hap]...)
	}
	return nil
}

func removeAll(paths ...string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Error.Printf("remove %s: %v", path, err)
		}
	}
}

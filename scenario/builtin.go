// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package scenario

import (
	"time"
)

// GIABFASTQ trains the simulator on real HiSeq error profiles.
const GIABFASTQ = "ftp://ftp-trace.ncbi.nlm.nih.gov/giab/ftp/data/NA12878/NIST_NA12878_HG001_HiSeq_300x/" +
	"131219_D00360_005_BH814YADXX/Project_RM8398/Sample_U5a/U5a_AGTCAA_L002_R1_007.fastq.gz"

// YeastInputStore holds the cactus yeast graphs.
const YeastInputStore = "https://cgl-pipeline-inputs.s3.amazonaws.com/vg_cgl/cactus_yeast"

func bakeoff(name, region, graph string, timeout time.Duration, skipIndexing bool) Scenario {
	return Scenario{
		Name: name, Kind: Bakeoff, Region: region, Graph: graph,
		Timeout: timeout, SkipIndexing: skipIndexing,
	}
}

func skipped(s Scenario, reason string) Scenario {
	s.Skip, s.SkipReason = true, reason
	return s
}

func yeastPaths() []string {
	chroms := []string{"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X", "XI", "XII", "XIII", "XIV", "XV", "XVI"}
	paths := make([]string, len(chroms))
	for i, c := range chroms {
		paths[i] = "SK1.chr" + c
	}
	return paths
}

const (
	mpmapSimOpts = "-d 0.01 -p 1000 -v 75.0 -S 5"
	skipRuntime  = "skipping test to keep runtime down"
)

func builtins() []Scenario {
	return []Scenario{
		skipped(bakeoff("test_map_sma_primary", "SMA", "primary", 2000*time.Second, true), skipRuntime),
		skipped(bakeoff("test_map_sma_snp1kg", "SMA", "snp1kg", 2000*time.Second, true), skipRuntime),
		skipped(bakeoff("test_map_sma_cactus", "SMA", "cactus", 2000*time.Second, true), skipRuntime),
		skipped(bakeoff("test_map_lrc_kir_primary", "LRC-KIR", "primary", 2000*time.Second, true), skipRuntime),
		skipped(bakeoff("test_map_lrc_kir_snp1kg", "LRC-KIR", "snp1kg", 2000*time.Second, true), skipRuntime),
		skipped(bakeoff("test_map_lrc_kir_cactus", "LRC-KIR", "cactus", 2000*time.Second, true), skipRuntime),
		bakeoff("test_map_brca1_primary", "BRCA1", "primary", 200*time.Second, true),
		bakeoff("test_map_brca1_snp1kg", "BRCA1", "snp1kg", 200*time.Second, true),
		bakeoff("test_map_brca1_cactus", "BRCA1", "cactus", 200*time.Second, true),
		{
			Name: "test_map_brca1_snp1kg_mpmap", Kind: Bakeoff, Region: "BRCA1", Graph: "snp1kg",
			Timeout: 600 * time.Second, SkipIndexing: true, Multipath: true, TagExt: "-mpmap",
			MiscOpts: []string{"--filter_opts", "-q 15 -m 1 -D 999 -s 1000"},
		},
		bakeoff("test_full_brca2_primary", "BRCA2", "primary", 900*time.Second, false),
		bakeoff("test_full_brca2_snp1kg", "BRCA2", "snp1kg", 900*time.Second, false),
		bakeoff("test_full_brca2_cactus", "BRCA2", "cactus", 900*time.Second, false),
		bakeoff("test_map_mhc_primary", "MHC", "primary", 10000*time.Second, true),
		bakeoff("test_map_mhc_snp1kg", "MHC", "snp1kg", 10000*time.Second, true),
		skipped(bakeoff("test_map_mhc_cactus", "MHC", "cactus", 10000*time.Second, true), skipRuntime+" (baseline missing as well)"),

		{
			Name: "test_sim_brca1_snp1kg", Kind: Mapeval, Region: "BRCA1", Graph: "snp1kg",
			Timeout: 3600 * time.Second, Skip: true, SkipReason: skipRuntime,
			Reads: 100000, TestGraphs: []string{"primary", "snp1kg"}, ScoreBaseline: "primary",
			Sample: "HG00096", AccThreshold: 0.02, AUCThreshold: 0.02,
		},
		{
			Name: "test_sim_mhc_cactus", Kind: Mapeval, Region: "MHC", Graph: "cactus",
			Timeout: 3600 * time.Second, Reads: 10000, TestGraphs: []string{"snp1kg", "cactus"},
			SourcePaths: []string{"GI568335986", "GI568335994"}, Multipath: true,
			AccThreshold: 0.02, AUCThreshold: 0.02,
		},
		{
			Name: "test_sim_chr21_snp1kg", Kind: Mapeval, Region: "CHR21", Graph: "snp1kg",
			Timeout: 16000 * time.Second, Reads: 300000,
			TestGraphs: []string{"primary", "snp1kg", "thresholded10"}, ScoreBaseline: "primary",
			Sample: "HG00096", Assembly: "hg19", Multipath: true,
			SimOpts:      "-l 150 -p 500 -v 50 -e 0.01 -i 0.002",
			AccThreshold: 0.0075, AUCThreshold: 0.075,
		},
		{
			Name: "test_sim_chr21_snp1kg_trained", Kind: Mapeval, Region: "CHR21", Graph: "snp1kg",
			Timeout: 16000 * time.Second, Reads: 100000, TestGraphs: []string{"primary", "snp1kg"},
			Sample: "HG00096", Assembly: "hg19", Multipath: true, PairedOnly: true, TagExt: "-trained",
			SimOpts: "-p 500 -v 50 -S 4 -i 0.002", SimFASTQ: GIABFASTQ,
			AccThreshold: 0.0075, AUCThreshold: 0.075,
		},
		{
			Name: "test_sim_brca2_snp1kg_mpmap", Kind: Mapeval, Region: "BRCA2", Graph: "snp1kg",
			Timeout: 3600 * time.Second, Skip: true, SkipReason: skipRuntime,
			Reads: 50000, TestGraphs: []string{"primary", "snp1kg"}, ScoreBaseline: "primary",
			Sample: "HG00096", Multipath: true, TagExt: "-mpmap",
			AccThreshold: 0.02, AUCThreshold: 0.02,
		},
		{
			Name: "test_sim_chr21_snp1kg_mpmap", Kind: Mapeval, Region: "CHR21", Graph: "snp1kg",
			Timeout: 7200 * time.Second, Skip: true, SkipReason: skipRuntime,
			Reads: 100000, TestGraphs: []string{"primary", "snp1kg"}, ScoreBaseline: "primary",
			Sample: "HG00096", Multipath: true, TagExt: "-mpmap",
			SimOpts: mpmapSimOpts, SimFASTQ: "platinum_NA12878_MHC.fq.gz",
			AccThreshold: 0.02,
		},
		{
			Name: "test_sim_mhc_snp1kg_mpmap", Kind: Mapeval, Region: "MHC", Graph: "snp1kg",
			Timeout: 7200 * time.Second, Reads: 50000, TestGraphs: []string{"primary", "snp1kg"},
			ScoreBaseline: "primary", Sample: "HG00096", Multipath: true, TagExt: "-mpmap",
			SimOpts: mpmapSimOpts, SimFASTQ: "platinum_NA12878_MHC.fq.gz",
			AccThreshold: 0.02, AUCThreshold: 0.02,
		},
		{
			Name: "test_sim_yeast_cactus", Kind: Mapeval, Region: "YEAST", Graph: "cactus",
			Timeout: 7200 * time.Second, InputStore: YeastInputStore, Reads: 100000,
			TestGraphs:  []string{"cactus", "cactus_drop_SK1", "cactus_SK1", "cactus_S288c"},
			SourcePaths: yeastPaths(), SimOpts: "-p 500 -v 50 -S 4 -i 0.002",
			AccThreshold: 0.02, AUCThreshold: 0.02,
		},
	}
}

// Builtin returns a registry of the standard regression scenarios.
func Builtin() *Registry {
	r := NewRegistry()
	for _, s := range builtins() {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

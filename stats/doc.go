// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package stats parses the small tabular artifacts written by the mapping
// evaluation pipeline: per-method aggregate statistics (stats.tsv), per-method
// score comparison summaries (score.stats.<baseline>.tsv), per-read score
// differences (<method>.compare.<baseline>.scores) and vcfeval F1 files.
//
// An aggregate statistics row looks like
//
//	snp1kg-pe	1000	0.91	0.80	0.5	0.86
//
// where the columns after the method name are read count, accuracy, AUC, QQ
// r value and max F1, in that order. Rows may be shorter than that; missing
// columns are reported as absent (see Cell) rather than zero.
package stats

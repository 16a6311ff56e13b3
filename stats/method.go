// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package stats

import "strings"

// Ends says whether a method aligned reads single-ended or as pairs.
type Ends int

const (
	SingleEnd Ends = iota
	PairedEnd
)

const (
	singleSuffix = "-se"
	pairedSuffix = "-pe"
)

// String implements fmt.Stringer.
func (e Ends) String() string {
	if e == PairedEnd {
		return "paired"
	}
	return "single"
}

// Method identifies one aligner/graph condition in the evaluation outputs.
//
// The pipeline is not consistent about naming: stats tables key single-end
// runs by the bare graph name and paired runs by "<name>-pe", plots label
// single-end runs "<name>-se", and score files never carry "-se". Method
// keeps the name and the variant apart and renders whichever form a
// particular artifact wants.
type Method struct {
	Name string
	Ends Ends
}

// ParseMethod splits a key such as "snp1kg-pe" into its name and variant. A
// key without a recognized suffix is single-ended.
func ParseMethod(key string) Method {
	switch {
	case strings.HasSuffix(key, pairedSuffix):
		return Method{Name: strings.TrimSuffix(key, pairedSuffix), Ends: PairedEnd}
	case strings.HasSuffix(key, singleSuffix):
		return Method{Name: strings.TrimSuffix(key, singleSuffix), Ends: SingleEnd}
	}
	return Method{Name: key, Ends: SingleEnd}
}

// Paired reports whether the method is a paired-end run.
func (m Method) Paired() bool { return m.Ends == PairedEnd }

// Key is the form used by stats.tsv and score.stats.*.tsv.
func (m Method) Key() string {
	if m.Paired() {
		return m.Name + pairedSuffix
	}
	return m.Name
}

// Display is the form used in plots and report tables.
func (m Method) Display() string {
	if m.Paired() {
		return m.Name + pairedSuffix
	}
	return m.Name + singleSuffix
}

// FileStem is the prefix of this method's per-read score files.
func (m Method) FileStem() string { return m.Key() }

// String implements fmt.Stringer.
func (m Method) String() string { return m.Key() }

// Variants expands each non-empty name into the bare, single-end and
// paired-end spellings so membership tests match any of them.
func Variants(names ...string) map[string]bool {
	set := map[string]bool{}
	for _, n := range names {
		if n == "" {
			continue
		}
		set[n] = true
		set[n+singleSuffix] = true
		set[n+pairedSuffix] = true
	}
	return set
}

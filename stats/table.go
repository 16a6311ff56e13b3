// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package stats

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// Column positions within a stats.tsv row, after the method name.
const (
	ColReads = iota
	ColAccuracy
	ColAUC
	ColQQR
	ColMaxF1

	// NumColumns is the number of columns a complete row carries.
	NumColumns
)

// Table maps a method key (e.g., "snp1kg" or "snp1kg-pe") to its ordered
// column values. Rows are not padded: a short row stays short.
type Table map[string][]float64

// Cell is one column of a row. OK is false when the row does not have the
// column; such a cell prints as "DNE".
type Cell struct {
	Value float64
	OK    bool
}

// DNE is the printed form of an absent cell.
const DNE = "DNE"

// Parse converts whitespace-delimited text into a Table. The first skip lines
// are ignored (stats.tsv carries one header row). A line is kept only if it
// has more than one token; its first token is the key and the rest must all
// parse as floats. A malformed number is an error.
func Parse(text string, skip int) (Table, error) {
	t := Table{}
	for i, line := range strings.Split(text, "\n") {
		if i < skip {
			continue
		}
		toks := strings.Fields(line)
		if len(toks) <= 1 {
			continue
		}
		vals := make([]float64, len(toks)-1)
		for j, tok := range toks[1:] {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("stats.Parse: line %d, column %d", i+1, j+2), err)
			}
			vals[j] = v
		}
		t[toks[0]] = vals
	}
	return t, nil
}

// Has reports whether the table has a row for key.
func (t Table) Has(key string) bool {
	_, ok := t[key]
	return ok
}

// Get returns column col of key's row. ok is false if there is no such row or
// the row is too short.
func (t Table) Get(key string, col int) (v float64, ok bool) {
	row, found := t[key]
	if !found || col < 0 || col >= len(row) {
		return 0, false
	}
	return row[col], true
}

// Padded returns key's row as n cells. Columns past the end of the row (or
// all columns, if there is no row) are absent.
func (t Table) Padded(key string, n int) []Cell {
	row := t[key]
	cells := make([]Cell, n)
	for i := 0; i < n && i < len(row); i++ {
		cells[i] = Cell{Value: row[i], OK: true}
	}
	return cells
}

// Keys returns the table's keys in sorted order.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UnionKeys returns the sorted union of the keys of all given tables.
func UnionKeys(tables ...Table) []string {
	seen := map[string]struct{}{}
	var keys []string
	for _, t := range tables {
		for k := range t {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// ParseF1 parses a vcfeval F1 file, which holds a single float on its first
// line.
func ParseF1(text string) (float64, error) {
	line := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	f1, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		return 0, errors.E(errors.Invalid, "stats.ParseF1", err)
	}
	return f1, nil
}

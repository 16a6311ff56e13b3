// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package position filters and partitions the per-read position comparison
// tables written by mapping evaluation (position.results.tsv and friends).
package position

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// Standard table names in an output store.
const (
	ResultsName        = "position.results.tsv"
	ControlName        = "position.results.control.tsv"
	NoControlName      = "position.results.no.control.tsv"
	primaryFilterInfix = ".primary.filter"
)

// FilteredName is the name of the score-filtered version of table name.
func FilteredName(name string) string {
	return strings.Replace(name, ".tsv", primaryFilterInfix+".tsv", 1)
}

// Table is a whitespace-delimited table with a header row. Rows are kept as
// their fields, so that writing a table back reproduces its cells exactly.
type Table struct {
	Header []string
	Rows   [][]string

	readCol, alignerCol int
}

// New creates an empty table with the given header. The header must name a
// "read" and an "aligner" column.
func New(header []string) (*Table, error) {
	t := &Table{Header: header, readCol: -1, alignerCol: -1}
	for i, name := range header {
		switch name {
		case "read":
			t.readCol = i
		case "aligner":
			t.alignerCol = i
		}
	}
	if t.readCol < 0 || t.alignerCol < 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("position table header %q lacks read or aligner column", strings.Join(header, " ")))
	}
	return t, nil
}

// Read parses a table. Blank lines are dropped; every row must have a cell
// for the read and aligner columns.
func Read(r io.Reader) (*Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), 16<<20)
	var t *Table
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if t == nil {
			var err error
			if t, err = New(fields); err != nil {
				return nil, err
			}
			continue
		}
		if len(fields) <= t.readCol || len(fields) <= t.alignerCol {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("position row %q: too few fields", sc.Text()))
		}
		t.Rows = append(t.Rows, fields)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.E(errors.Invalid, "position table is empty")
	}
	return t, nil
}

// ReadFile reads a table from path.
func ReadFile(ctx context.Context, path string) (t *Table, err error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, f, &err)
	t, err = Read(f.Reader(ctx))
	if err != nil {
		return nil, errors.E(path, err)
	}
	return t, nil
}

// Empty returns a table with t's header and no rows.
func (t *Table) Empty() *Table {
	return &Table{Header: t.Header, readCol: t.readCol, alignerCol: t.alignerCol}
}

// Read returns the read name of row i.
func (t *Table) Read(i int) string { return t.Rows[i][t.readCol] }

// Aligner returns the aligner of row i with any quoting removed.
func (t *Table) Aligner(i int) string { return strings.Trim(t.Rows[i][t.alignerCol], `"`) }

// Write writes the table tab-separated, header first.
func (t *Table) Write(w io.Writer) error {
	tw := tsv.NewWriter(w)
	for _, row := range append([][]string{t.Header}, t.Rows...) {
		for _, cell := range row {
			tw.WriteString(cell)
		}
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WriteFile writes the table to path.
func (t *Table) WriteFile(ctx context.Context, path string) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, f, &err)
	return t.Write(f.Writer(ctx))
}

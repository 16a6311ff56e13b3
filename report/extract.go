// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package report

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/grailbio/base/errors"
)

// Block is one extracted report block.
type Block struct {
	Name  string
	TSV   bool
	Lines []string
}

// Rows splits the block's lines on tabs.
func (b Block) Rows() [][]string {
	rows := make([][]string, len(b.Lines))
	for i, line := range b.Lines {
		rows[i] = strings.Split(line, "\t")
	}
	return rows
}

var attrRE = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)

// Extract returns the blocks in r in order. Text outside blocks is skipped.
// Blocks do not nest; an unterminated block is an error.
func Extract(r io.Reader) ([]Block, error) {
	var (
		blocks []Block
		cur    *Block
		lineno int
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), 16<<20)
	for sc.Scan() {
		lineno++
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, openTag) && strings.HasSuffix(line, ">"):
			if cur != nil {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("line %d: block %q opened inside block %q", lineno, line, cur.Name))
			}
			cur = &Block{}
			for _, m := range attrRE.FindAllStringSubmatch(line[len(openTag):len(line)-1], -1) {
				switch m[1] {
				case "name":
					cur.Name = m[2]
				case "tsv":
					cur.TSV = m[2] == "True"
				}
			}
		case line == closeTag:
			if cur == nil {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("line %d: %s outside a block", lineno, closeTag))
			}
			blocks = append(blocks, *cur)
			cur = nil
		case cur != nil:
			cur.Lines = append(cur.Lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if cur != nil {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("block %q is not terminated", cur.Name))
	}
	return blocks, nil
}

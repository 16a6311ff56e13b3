// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package position

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/vgci/stats"
)

// DefaultScoreBaseline is the condition whose score comparisons decide which
// reads are filtered.
const DefaultScoreBaseline = "primary"

// ScoreCache answers whether a read scored worse on some method than on the
// score baseline. Each method's comparison file is loaded on first use. A
// method whose file cannot be read has no worse reads. A cache is meant to
// serve one filtering pass; files are never reloaded.
type ScoreCache struct {
	// Dir holds the <method>.compare.<baseline>.scores files.
	Dir string
	// Against is the baseline condition; DefaultScoreBaseline if empty.
	Against string

	worse map[string]map[string]bool
}

// NewScoreCache returns an empty cache over the comparison files in dir.
func NewScoreCache(dir string) *ScoreCache {
	return &ScoreCache{Dir: dir, Against: DefaultScoreBaseline}
}

// Path returns the comparison file consulted for method.
func (c *ScoreCache) Path(method stats.Method) string {
	against := c.Against
	if against == "" {
		against = DefaultScoreBaseline
	}
	return filepath.Join(c.Dir, fmt.Sprintf("%s.compare.%s.scores", method.FileStem(), against))
}

// Worse reports whether read got a negative score delta on method (an
// aligner name as it appears in a position table).
func (c *ScoreCache) Worse(ctx context.Context, method, read string) bool {
	m := stats.ParseMethod(method)
	if c.worse == nil {
		c.worse = map[string]map[string]bool{}
	}
	reads, ok := c.worse[m.Key()]
	if !ok {
		reads = c.load(ctx, m)
		c.worse[m.Key()] = reads
	}
	return reads[read]
}

func (c *ScoreCache) load(ctx context.Context, m stats.Method) map[string]bool {
	reads := map[string]bool{}
	path := c.Path(m)
	f, err := file.Open(ctx, path)
	if err != nil {
		log.Debug.Printf("no score comparison for %s: %v", m, err)
		return reads
	}
	defer func() {
		if err := f.Close(ctx); err != nil {
			log.Error.Printf("close %s: %v", path, err)
		}
	}()
	err = stats.ReadScoreRecords(f.Reader(ctx), func(r stats.ScoreRecord) {
		if r.Worse() {
			reads[r.Read] = true
		}
	})
	if err != nil {
		// Reads collected before the bad line still count.
		log.Error.Printf("%s: %v", path, err)
	}
	return reads
}

// FilterByScore returns a copy of t without the rows whose read scored worse
// on the row's aligner, and the number of rows removed.
func FilterByScore(ctx context.Context, t *Table, cache *ScoreCache) (*Table, int) {
	out := t.Empty()
	removed := 0
	for i, row := range t.Rows {
		if cache.Worse(ctx, t.Aligner(i), t.Read(i)) {
			removed++
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out, removed
}

// FilterFile filters the table at src into dst, using the comparison files
// that sit next to src. It returns the number of rows removed.
func FilterFile(ctx context.Context, src, dst string) (int, error) {
	t, err := ReadFile(ctx, src)
	if err != nil {
		return 0, err
	}
	filtered, n := FilterByScore(ctx, t, NewScoreCache(filepath.Dir(src)))
	if err := filtered.WriteFile(ctx, dst); err != nil {
		return 0, err
	}
	return n, nil
}

// DefaultControlInclude are the graphs drawn alongside the controls.
var DefaultControlInclude = []string{"snp1kg", "primary", "common1kg"}

// PartitionByControl splits t into the rows to plot with the control graphs
// and the rows to plot without them. The control table holds the include
// graphs and both controls; the other table holds everything except the
// controls. Graph names match any of their bare, -se and -pe spellings.
// Empty control names are ignored.
func PartitionByControl(t *Table, include []string, positive, negative string) (control, noControl *Table) {
	controls := stats.Variants(positive, negative)
	withControls := stats.Variants(append(append([]string(nil), include...), positive, negative)...)
	control, noControl = t.Empty(), t.Empty()
	for i, row := range t.Rows {
		aligner := t.Aligner(i)
		if withControls[aligner] {
			control.Rows = append(control.Rows, row)
		}
		if !controls[aligner] {
			noControl.Rows = append(noControl.Rows, row)
		}
	}
	return control, noControl
}

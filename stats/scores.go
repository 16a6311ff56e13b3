// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package stats

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// ScoreStats summarizes how a method's alignment scores compare to a
// baseline condition: how many reads were compared and what fraction of
// them scored worse.
type ScoreStats struct {
	Count         float64
	WorseFraction float64
}

// MissingScoreBaseline is used for a method that has no recorded score
// baseline yet. Any worse fraction up to 1 (plus the threshold) passes
// against it.
var MissingScoreBaseline = ScoreStats{Count: 0, WorseFraction: 1}

// ScoreTable maps a method key to its score comparison summary.
type ScoreTable map[string]ScoreStats

// ParseScoreStats parses a score.stats.<baseline>.tsv file, skipping the
// first skip lines. Every kept row must carry both a count and a worse
// fraction.
func ParseScoreStats(text string, skip int) (ScoreTable, error) {
	t, err := Parse(text, skip)
	if err != nil {
		return nil, err
	}
	st := make(ScoreTable, len(t))
	for key, row := range t {
		if len(row) < 2 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("stats.ParseScoreStats: %s: want 2 columns, got %d", key, len(row)))
		}
		st[key] = ScoreStats{Count: row[0], WorseFraction: row[1]}
	}
	return st, nil
}

// ScoreRecord is one line of a <method>.compare.<baseline>.scores file.
type ScoreRecord struct {
	Read string
	// Diff is the aligned score minus the baseline score. Negative means
	// the read got worse.
	Diff     int
	Aligned  int
	Baseline int
}

// Worse reports whether the read scored lower than its baseline.
func (r ScoreRecord) Worse() bool { return r.Diff < 0 }

const scoreSep = ", "

// ParseScoreRecord parses "read, diff, aligned, baseline". Only the read name
// and the score difference are required; the aligned and baseline scores are
// filled in when present.
func ParseScoreRecord(line string) (ScoreRecord, error) {
	parts := strings.Split(strings.TrimRight(line, "\r\n"), scoreSep)
	if len(parts) < 2 {
		return ScoreRecord{}, errors.E(errors.Invalid, fmt.Sprintf("score record %q: too few fields", line))
	}
	rec := ScoreRecord{Read: parts[0]}
	var err error
	if rec.Diff, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return ScoreRecord{}, errors.E(errors.Invalid, fmt.Sprintf("score record %q", line), err)
	}
	if len(parts) > 2 {
		if rec.Aligned, err = strconv.Atoi(strings.TrimSpace(parts[2])); err != nil {
			return ScoreRecord{}, errors.E(errors.Invalid, fmt.Sprintf("score record %q", line), err)
		}
	}
	if len(parts) > 3 {
		if rec.Baseline, err = strconv.Atoi(strings.TrimSpace(parts[3])); err != nil {
			return ScoreRecord{}, errors.E(errors.Invalid, fmt.Sprintf("score record %q", line), err)
		}
	}
	return rec, nil
}

// ReadScoreRecords reads every non-blank line of a score comparison file and
// calls fn on each record in order.
func ReadScoreRecords(r io.Reader, fn func(ScoreRecord)) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := ParseScoreRecord(line)
		if err != nil {
			return err
		}
		fn(rec)
	}
	return sc.Err()
}

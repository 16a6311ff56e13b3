// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/vgci/artifact"
)

// Layout derives the storage locations of a run from its tag. Two runs with
// the same tag share a job store and an output store, so tags must be unique
// among runs that can overlap.
type Layout struct {
	WorkDir string
}

// JobStore is the pipeline's job store for tag.
func (l Layout) JobStore(tag string) string {
	return filepath.Join(l.WorkDir, "jobstore"+tag)
}

// OutStoreName is the output store's name relative to WorkDir.
func (l Layout) OutStoreName(tag string) string {
	return artifact.OutStoreName(tag)
}

// OutStore is the output store for tag.
func (l Layout) OutStore(tag string) string {
	return filepath.Join(l.WorkDir, l.OutStoreName(tag))
}

// OutFile is the path of a named artifact in tag's output store.
func (l Layout) OutFile(tag, name string) string {
	return filepath.Join(l.OutStore(tag), name)
}

func checkExt(ext string) error {
	if ext != "" && !strings.HasPrefix(ext, "-") {
		return errors.E(errors.Invalid, fmt.Sprintf("tag extension %q must start with '-'", ext))
	}
	return nil
}

// BakeoffTag names a map/call run: <region>-<graph><ext>.
func BakeoffTag(region, graph, ext string) (string, error) {
	if err := checkExt(ext); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s%s", region, graph, ext), nil
}

// SimTag names a simulation/mapeval run: sim-<region>-<graph><ext>.
func SimTag(region, graph, ext string) (string, error) {
	if err := checkExt(ext); err != nil {
		return "", err
	}
	return fmt.Sprintf("sim-%s-%s%s", region, graph, ext), nil
}

type coords struct {
	chrom  string
	offset int64
}

var bakeoffCoords = map[string]coords{
	"BRCA1":   {"17", 43044293},
	"BRCA2":   {"13", 32314860},
	"SMA":     {"5", 69216818},
	"LRC-KIR": {"19", 54025633},
	"MHC":     {"6", 28510119},
}

// Coords returns the chromosome and reference offset of a bakeoff region.
// Whole-chromosome regions are spelled CHR<n> and have offset 0. ok is false
// for regions that are not on the human reference (e.g., YEAST).
func Coords(region string) (chrom string, offset int64, ok bool) {
	if c, found := bakeoffCoords[region]; found {
		return c.chrom, c.offset, true
	}
	if strings.Contains(region, "CHR") {
		n := strings.Replace(region, "CHR", "", -1)
		if _, err := strconv.Atoi(n); err == nil {
			return n, 0, true
		}
	}
	return "", 0, false
}

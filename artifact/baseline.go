// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package artifact

import (
	"context"

	"github.com/grailbio/base/log"
)

// OutStoreName is the directory name of the output store for tag, both in the
// work directory and under the baseline root.
func OutStoreName(tag string) string { return "outstore-" + tag }

// Baseline is the read-only store of results from earlier accepted runs. Its
// Root is either a local directory or an s3:// (or gs://) prefix; artifacts
// live under <Root>/outstore-<tag>/<name>.
type Baseline struct {
	Store *Store
	Root  string
}

// Locator returns the location of a baseline artifact.
func (b Baseline) Locator(tag, name string) string {
	return Join(b.Root, OutStoreName(tag), name)
}

// Lookup reads a baseline artifact. found is false (and err nil) when the
// artifact has not been recorded yet; any other retrieval failure is
// returned as an error.
func (b Baseline) Lookup(ctx context.Context, tag, name string) (text string, found bool, err error) {
	loc := b.Locator(tag, name)
	text, err = b.Store.ReadText(ctx, loc)
	if IsNotExist(err) {
		log.Printf("baseline %s not found", loc)
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// Fetch reads a baseline artifact, returning the empty string if it has not
// been recorded yet.
func (b Baseline) Fetch(ctx context.Context, tag, name string) (string, error) {
	text, _, err := b.Lookup(ctx, tag, name)
	return text, err
}

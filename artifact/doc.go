// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package artifact retrieves pipeline inputs, outputs and stored baselines
// from local directories, public HTTPS URLs, S3 and GCS.
//
// Baselines are usually kept in a public S3 bucket and fetched through the
// bucket's HTTPS endpoint, so the harness needs no AWS credentials:
//
//	s3://cgl-pipeline-inputs/vg_cgl/vg_ci/baseline/outstore-BRCA1-primary/stats.tsv
//	https://cgl-pipeline-inputs.s3.amazonaws.com/vg_cgl/vg_ci/baseline/outstore-BRCA1-primary/stats.tsv
//
// A missing baseline is normal (a new test has not been accepted yet) and is
// reported by Baseline.Fetch as an empty string.
package artifact

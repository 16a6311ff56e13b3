// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

// vgci runs the vg regression scenarios and compares their results against
// the recorded baseline.
//
// Usage:
//
//	vgci run [-config vgci.yaml] [-scenarios extra.yaml] [-run-skipped] [name...]
//	vgci list [-all]
//	vgci verify -workdir dir name
//	vgci history [-n 10] name metric [method]

import (
	"log"

	"v.io/x/lib/cmdline"
)

func newCmdRoot() *cmdline.Command {
	return &cmdline.Command{
		Name:     "vgci",
		Short:    "Regression harness for the vg toolchain",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdRun(),
			newCmdList(),
			newCmdVerify(),
			newCmdHistory(),
		},
	}
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(newCmdRoot())
}

// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"golang.org/x/sys/unix"
)

// Runner executes external commands.
type Runner interface {
	// Run blocks until cmd exits. A non-zero exit is an error; so is the
	// context ending first, in which case the process is killed.
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands as local child processes. Each command gets its
// own process group so that the whole tree can be killed when the context
// expires.
type ExecRunner struct {
	// Stdout and Stderr receive the child's output when the command does
	// not redirect it. Nil means the harness's own streams.
	Stdout, Stderr io.Writer
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, cmd Command) (err error) {
	if err = ctx.Err(); err != nil {
		return ctxError(ctx, cmd)
	}
	log.Printf("run: %s", cmd)
	c := exec.Command(cmd.Name, cmd.Argv()...)
	c.Dir = cmd.Dir
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Stdout, c.Stderr = r.Stdout, r.Stderr
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	if cmd.Stdout != "" {
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if cmd.Append {
			flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		}
		out, oerr := os.OpenFile(cmd.Stdout, flags, 0666)
		if oerr != nil {
			return errors.E(fmt.Sprintf("%s: open stdout", cmd.Name), oerr)
		}
		defer func() {
			if cerr := out.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		c.Stdout = out
	}
	if err = c.Start(); err != nil {
		return errors.E(fmt.Sprintf("start %s", cmd), err)
	}
	done := make(chan error, 1)
	go func() { done <- c.Wait() }()
	select {
	case err = <-done:
	case <-ctx.Done():
		if kerr := unix.Kill(-c.Process.Pid, unix.SIGKILL); kerr != nil {
			log.Error.Printf("kill process group %d: %v", c.Process.Pid, kerr)
		}
		<-done
		return ctxError(ctx, cmd)
	}
	if err != nil {
		return errors.E(fmt.Sprintf("%s", cmd), err)
	}
	log.Debug.Printf("done: %s", cmd)
	return nil
}

func ctxError(ctx context.Context, cmd Command) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.E(errors.Timeout, fmt.Sprintf("%s: deadline exceeded", cmd), ctx.Err())
	}
	return errors.E(errors.Canceled, fmt.Sprintf("%s: canceled", cmd), ctx.Err())
}

// RunAll runs commands in order, stopping at the first failure.
func RunAll(ctx context.Context, r Runner, cmds ...Command) error {
	for _, cmd := range cmds {
		if err := r.Run(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

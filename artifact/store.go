// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package artifact

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
)

// Store retrieves artifacts by locator. The zero value reads local paths and
// http(s) URLs, and reads s3:// locators through their public HTTPS URL.
type Store struct {
	// HTTP serves http, https, and (when S3 is nil) s3 locators.
	HTTP HTTPGetter
	// S3, if set, serves s3 locators with authenticated SDK calls.
	S3 Getter
	// GCS, if set, serves gs locators.
	GCS Getter
}

func (s *Store) getter(l Locator) (Getter, error) {
	switch l.Scheme {
	case Local:
		return LocalGetter{}, nil
	case HTTP, HTTPS:
		return s.HTTP, nil
	case S3:
		if s.S3 != nil {
			return s.S3, nil
		}
		return s.HTTP, nil
	case GS:
		if s.GCS != nil {
			return s.GCS, nil
		}
		return nil, errors.E(errors.NotSupported, fmt.Sprintf("%s: no GCS client configured", l))
	}
	return nil, errors.E(errors.NotSupported, fmt.Sprintf("%s: unsupported scheme %q", l, l.Scheme))
}

// Open opens the artifact at loc for reading.
func (s *Store) Open(ctx context.Context, loc string) (io.ReadCloser, error) {
	l := Parse(loc)
	g, err := s.getter(l)
	if err != nil {
		return nil, err
	}
	return g.Open(ctx, l)
}

// Fetch returns the raw bytes of the artifact at loc.
func (s *Store) Fetch(ctx context.Context, loc string) ([]byte, error) {
	rc, err := s.Open(ctx, loc)
	if err != nil {
		return nil, err
	}
	data, err := ioutil.ReadAll(rc)
	if cerr := rc.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return nil, errors.E(fmt.Sprintf("read %s", loc), err)
	}
	return data, nil
}

// ReadText returns the artifact at loc as text. Gzipped artifacts (by
// extension) are decompressed.
func (s *Store) ReadText(ctx context.Context, loc string) (string, error) {
	rc, err := s.Open(ctx, loc)
	if err != nil {
		return "", err
	}
	defer rc.Close() // nolint: errcheck
	var r io.Reader = rc
	if fileio.DetermineType(loc) == fileio.Gzip {
		gz, err := gzip.NewReader(rc)
		if err != nil {
			return "", errors.E(errors.Invalid, fmt.Sprintf("gunzip %s", loc), err)
		}
		defer gz.Close() // nolint: errcheck
		r = gz
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return "", errors.E(fmt.Sprintf("read %s", loc), err)
	}
	return string(data), nil
}

// ReadLines returns the artifact at loc split into lines, without line
// terminators. A trailing newline does not produce an empty last line.
func (s *Store) ReadLines(ctx context.Context, loc string) ([]string, error) {
	text, err := s.ReadText(ctx, loc)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// CopyTo copies the artifact at src to the local path dst, creating dst's
// parent directories as needed. The content is copied byte for byte.
func (s *Store) CopyTo(ctx context.Context, src, dst string) (err error) {
	if err = os.MkdirAll(filepath.Dir(dst), 0777); err != nil {
		return errors.E(fmt.Sprintf("mkdir %s", filepath.Dir(dst)), err)
	}
	log.Printf("Download %s -> %s", src, dst)
	in, err := s.Open(ctx, src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := in.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	out, err := file.Create(ctx, dst)
	if err != nil {
		return errors.E(fmt.Sprintf("create %s", dst), err)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if _, err = io.Copy(out.Writer(ctx), in); err != nil {
		return errors.E(fmt.Sprintf("copy %s -> %s", src, dst), err)
	}
	return nil
}

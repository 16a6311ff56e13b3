// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Scheme classifies a locator.
type Scheme string

const (
	Local Scheme = ""
	S3    Scheme = "s3"
	GS    Scheme = "gs"
	HTTP  Scheme = "http"
	HTTPS Scheme = "https"
	FTP   Scheme = "ftp"
)

// Locator is a parsed artifact location. For bucket schemes (s3, gs) Bucket
// is the first path segment and Key is the remainder, without a leading
// slash. For everything else Path holds the original string.
type Locator struct {
	Scheme Scheme
	Bucket string
	Key    string
	Path   string
}

// Parse parses s into a Locator. Strings without a recognized "scheme://"
// prefix are local paths.
func Parse(s string) Locator {
	i := strings.Index(s, "://")
	if i <= 0 {
		return Locator{Scheme: Local, Path: s}
	}
	scheme := Scheme(strings.ToLower(s[:i]))
	rest := s[i+3:]
	switch scheme {
	case S3, GS:
		bucket, key := rest, ""
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			bucket, key = rest[:j], rest[j+1:]
		}
		return Locator{Scheme: scheme, Bucket: bucket, Key: key, Path: s}
	case HTTP, HTTPS, FTP:
		return Locator{Scheme: scheme, Path: s}
	}
	return Locator{Scheme: Local, Path: s}
}

// String reconstructs the locator.
func (l Locator) String() string {
	switch l.Scheme {
	case S3, GS:
		return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Bucket, l.Key)
	}
	return l.Path
}

// Join appends path elements to the locator, using "/" for remote locators
// and the OS separator for local paths.
func Join(base string, elem ...string) string {
	if Parse(base).Scheme == Local {
		return filepath.Join(append([]string{base}, elem...)...)
	}
	parts := []string{strings.TrimRight(base, "/")}
	for _, e := range elem {
		if e = strings.Trim(e, "/"); e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, "/")
}

// Base returns the last element of the locator.
func Base(loc string) string {
	if Parse(loc).Scheme == Local {
		return filepath.Base(loc)
	}
	loc = strings.TrimRight(loc, "/")
	return loc[strings.LastIndexByte(loc, '/')+1:]
}

// PublicURL rewrites an s3:// locator into the equivalent public HTTPS URL,
// https://<bucket>.s3.amazonaws.com/<key>. Other locators are returned
// unchanged.
func PublicURL(loc string) string {
	l := Parse(loc)
	if l.Scheme != S3 {
		return loc
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", l.Bucket, l.Key)
}

// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package artifact

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// Getter opens one kind of locator for reading. A missing object must be
// reported as an errors.NotExist error; any other failure is returned as is.
type Getter interface {
	Open(ctx context.Context, loc Locator) (io.ReadCloser, error)
}

// IsNotExist reports whether err means the artifact does not exist.
func IsNotExist(err error) bool {
	return err != nil && (errors.Is(errors.NotExist, err) || os.IsNotExist(err))
}

// LocalGetter reads local paths through grailbio/base/file.
type LocalGetter struct{}

type fileReadCloser struct {
	ctx context.Context
	f   file.File
	io.Reader
}

func (r *fileReadCloser) Close() error { return r.f.Close(r.ctx) }

// Open implements Getter.
func (LocalGetter) Open(ctx context.Context, loc Locator) (io.ReadCloser, error) {
	f, err := file.Open(ctx, loc.Path)
	if err != nil {
		if _, serr := file.Stat(ctx, loc.Path); IsNotExist(serr) || IsNotExist(err) {
			return nil, errors.E(errors.NotExist, fmt.Sprintf("open %s", loc.Path), err)
		}
		return nil, errors.E(fmt.Sprintf("open %s", loc.Path), err)
	}
	return &fileReadCloser{ctx: ctx, f: f, Reader: f.Reader(ctx)}, nil
}

// HTTPGetter fetches http(s) URLs. s3:// locators are rewritten to their
// public HTTPS form first, so it can also serve public buckets without
// credentials.
type HTTPGetter struct {
	Client *http.Client
}

// Open implements Getter.
func (g HTTPGetter) Open(ctx context.Context, loc Locator) (io.ReadCloser, error) {
	url := PublicURL(loc.String())
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.E(errors.Invalid, url, err)
	}
	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, errors.E(errors.Unavailable, fmt.Sprintf("get %s", url), err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, errors.E(errors.NotExist, fmt.Sprintf("get %s: %s", url, resp.Status))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		resp.Body.Close()
		return nil, errors.E(errors.Unavailable, fmt.Sprintf("get %s: %s", url, resp.Status))
	}
	return resp.Body, nil
}

// S3Getter reads s3:// locators with the AWS SDK, for buckets that are not
// publicly readable.
type S3Getter struct {
	Client s3iface.S3API
}

// Open implements Getter.
func (g S3Getter) Open(ctx context.Context, loc Locator) (io.ReadCloser, error) {
	out, err := g.Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		if rf, ok := err.(awserr.RequestFailure); ok && rf.StatusCode() == http.StatusNotFound {
			return nil, errors.E(errors.NotExist, loc.String(), err)
		}
		if ae, ok := err.(awserr.Error); ok && ae.Code() == s3.ErrCodeNoSuchKey {
			return nil, errors.E(errors.NotExist, loc.String(), err)
		}
		return nil, errors.E(errors.Unavailable, loc.String(), err)
	}
	return out.Body, nil
}

// GCSGetter reads gs:// locators.
type GCSGetter struct {
	Client *storage.Client
}

// Open implements Getter.
func (g GCSGetter) Open(ctx context.Context, loc Locator) (io.ReadCloser, error) {
	r, err := g.Client.Bucket(loc.Bucket).Object(loc.Key).NewReader(ctx)
	if err != nil {
		if goerrors.Is(err, storage.ErrObjectNotExist) || goerrors.Is(err, storage.ErrBucketNotExist) {
			return nil, errors.E(errors.NotExist, loc.String(), err)
		}
		return nil, errors.E(errors.Unavailable, loc.String(), err)
	}
	return r, nil
}

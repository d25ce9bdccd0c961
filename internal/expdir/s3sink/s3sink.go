// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package s3sink optionally uploads a completed experiment directory
// to an S3-compatible bucket after Finalize, when
// SCOREP_EXPERIMENT_S3_BUCKET is set (a DOMAIN STACK addition; spec.md
// itself is silent on off-box persistence).
package s3sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/score-p/scorep-measurement-core/internal/expdir"
)

// Sink uploads experiment directory contents to one S3 bucket/prefix.
type Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// New loads the default AWS configuration (environment, shared config
// file, or instance role — aws-sdk-go-v2's usual resolution chain) and
// returns a Sink targeting bucket/prefix.
func New(ctx context.Context, bucket, prefix string) (*Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3sink: loading AWS config: %w", err)
	}
	return &Sink{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

// UploadDirectory walks dir.Root and puts every regular file (skipping
// the file-index database itself) to the sink's bucket under
// prefix/<relative path>.
func (s *Sink) UploadDirectory(ctx context.Context, dir *expdir.Directory) error {
	return filepath.Walk(dir.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Base(path) == ".index.db" {
			return nil
		}
		rel, err := filepath.Rel(dir.Root, path)
		if err != nil {
			return err
		}
		return s.uploadFile(ctx, path, rel)
	})
}

func (s *Sink) uploadFile(ctx context.Context, localPath, relPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("s3sink: opening %s: %w", localPath, err)
	}
	defer f.Close()

	key := strings.TrimPrefix(s.prefix+"/"+relPath, "/")
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("s3sink: uploading %s: %w", key, err)
	}
	return nil
}

// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/pgzip"
)

// RealSink persists committed snapshots to S3. Records are buffered in
// memory between Commit calls (Add never touches the network), then
// flattened to newline-delimited JSON, gzip-compressed with pgzip, and
// uploaded as one object per commit. An upload that fails — bucket
// unreachable, credentials expired — falls back to writing the same
// compressed batch to the local spool directory rather than losing it.
// Spooled files are never re-uploaded; the archiver only rotates them,
// deleting the oldest beyond the retention count.
type RealSink struct {
	schema []string
	bucket string
	prefix string

	client   *s3.Client
	uploader *manager.Uploader
	guard    *DiskGuard
	spool    *SpoolWriter

	rateLimitBytesPerSec int64
	logger               *slog.Logger

	mu       sync.Mutex
	buffered []Record
}

// NewRealSink builds a RealSink from a Descriptor, loading AWS credentials
// the standard way (environment, shared config, instance profile — see
// config.LoadDefaultConfig). Returns an error if the AWS config cannot be
// loaded or the spool directory cannot be prepared; the caller (Rebuild)
// falls back to the simulator rather than failing startup outright.
func NewRealSink(ctx context.Context, d Descriptor, logger *slog.Logger) (*RealSink, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(d.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client)

	spoolDir := d.SpoolDir
	if spoolDir == "" {
		spoolDir = "spool"
	}
	spool, err := NewSpoolWriter(spoolDir, d.MaxSpoolBatches)
	if err != nil {
		return nil, fmt.Errorf("preparing spool directory: %w", err)
	}

	guard := NewDiskGuard(logger, spoolDir)
	guard.Start()

	return &RealSink{
		schema:               append([]string(nil), d.Schema...),
		bucket:               d.Bucket,
		prefix:               d.Prefix,
		client:               client,
		uploader:             uploader,
		guard:                guard,
		spool:                spool,
		rateLimitBytesPerSec: d.RateLimitBytesPerSec,
		logger:               logger.With("component", "real_sink", "bucket", d.Bucket),
	}, nil
}

// Schema returns the fixed set of variable names.
func (s *RealSink) Schema() []string {
	return append([]string(nil), s.schema...)
}

// Descriptor reproduces the parameters this sink was built from, so the
// Coordinator can rebuild an equivalent RealSink in a fresh context.
func (s *RealSink) Descriptor() Descriptor {
	return Descriptor{
		Kind:                 "s3",
		Schema:               s.Schema(),
		Bucket:               s.bucket,
		Prefix:               s.prefix,
		RateLimitBytesPerSec: s.rateLimitBytesPerSec,
		MaxSpoolBatches:      s.spool.maxBatches,
		SpoolDir:             s.spool.dir,
	}
}

// Add enqueues a record for the next Commit.
func (s *RealSink) Add(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffered = append(s.buffered, r)
	return nil
}

// Commit flushes the buffered records as one compressed batch. On upload
// failure it spools the batch locally rather than losing it; the caller
// logs that outcome and keeps the Coordinator running.
func (s *RealSink) Commit() error {
	s.mu.Lock()
	batch := s.buffered
	s.buffered = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	payload, err := compressBatch(batch)
	if err != nil {
		return fmt.Errorf("compressing batch: %w", err)
	}

	key := fmt.Sprintf("%sbatch-%s.ndjson.gz", s.prefix, time.Now().UTC().Format("20060102T150405.000000000"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.upload(ctx, key, payload); err != nil {
		s.logger.Warn("upload failed, spooling batch locally", "error", err, "records", len(batch))
		return s.spoolBatch(payload)
	}
	return nil
}

func (s *RealSink) upload(ctx context.Context, key string, payload []byte) error {
	var body io.Reader = bytes.NewReader(payload)
	if s.rateLimitBytesPerSec > 0 {
		pr, pw := io.Pipe()
		throttled := NewThrottledWriter(ctx, pw, s.rateLimitBytesPerSec, len(payload))
		go func() {
			_, err := io.Copy(throttled, bytes.NewReader(payload))
			pw.CloseWithError(err)
		}()
		body = pr
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	return err
}

func (s *RealSink) spoolBatch(payload []byte) error {
	if !s.guard.HasSpace() {
		return fmt.Errorf("sink: spool volume full, dropping batch (%d bytes)", len(payload))
	}
	return s.spool.WriteBatch(payload)
}

func compressBatch(batch []Record) ([]byte, error) {
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)

	enc := json.NewEncoder(gz)
	for _, r := range batch {
		if err := enc.Encode(r); err != nil {
			gz.Close()
			return nil, fmt.Errorf("encoding record: %w", err)
		}
	}

	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("closing compressor: %w", err)
	}
	return buf.Bytes(), nil
}

// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/radluki/pkss-communication/internal/config"
	"github.com/radluki/pkss-communication/internal/coordinator"
	"github.com/radluki/pkss-communication/internal/listener"
	"github.com/radluki/pkss-communication/internal/logging"
	"github.com/radluki/pkss-communication/internal/protocol"
	"github.com/radluki/pkss-communication/internal/sink"
	"github.com/radluki/pkss-communication/internal/state"
	"github.com/radluki/pkss-communication/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to server config file (optional; defaults apply otherwise)")
	login := flag.Bool("login", false, "prompt interactively for the S3 bucket and region instead of using the configured or simulator sink; AWS credentials are not prompted for and come from the default AWS credential chain")
	portFile := flag.String("port-file", "port.txt", "file the chosen port is written to, for test drivers")
	flag.Parse()

	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "usage: pkss-server [flags] <ip> <port>")
		os.Exit(1)
	}
	ip := flag.Arg(0)
	port, err := strconv.Atoi(flag.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid port %q: %v\n", flag.Arg(1), err)
		os.Exit(1)
	}

	cfg := config.DefaultServerConfig()
	if *configPath != "" {
		loaded, err := config.LoadServerConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if *login {
		if err := promptSinkCredentials(&cfg.Sink); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading sink credentials: %v\n", err)
			os.Exit(1)
		}
	}

	logger, logCloser := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, "", "server")
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, ip, port, *portFile, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, ip string, port int, portFile string, cfg *config.ServerConfig, logger *slog.Logger) error {
	st := state.New(cfg.Schema, cfg.WaitTick)

	snk, err := sink.Rebuild(ctx, sinkDescriptor(cfg), logger)
	if err != nil {
		return fmt.Errorf("building sink: %w", err)
	}

	var auditLogger *slog.Logger
	var auditCloser io.Closer
	if cfg.Sink.AuditDir != "" {
		runID := strconv.FormatInt(time.Now().UnixNano(), 36)
		al, closer, path, err := logging.NewAuditLogger(logger, cfg.Sink.AuditDir, "coordinator", runID)
		if err != nil {
			logger.Warn("disabling audit log", "error", err)
		} else {
			auditLogger, auditCloser = al, closer
			logger.Info("audit log enabled", "path", path)
		}
	}

	coord := coordinator.New(st, snk, cfg.CommitInterval, logger, auditLogger, auditCloser)
	coordCtx, coordCancel := context.WithCancel(ctx)
	defer coordCancel()
	coordErrCh := make(chan error, 1)
	go func() { coordErrCh <- coord.Run(coordCtx) }()

	needsArchiver := (cfg.Sink.Kind == "s3" && cfg.Sink.SpoolDir != "") || cfg.Sink.AuditDir != ""
	if needsArchiver {
		archiver, err := coordinator.NewArchiver("@every 1h", cfg.Sink.SpoolDir, cfg.Sink.MaxSpoolBatches, cfg.Sink.AuditDir, cfg.Sink.AuditKeepRuns, logger)
		if err != nil {
			logger.Warn("archiver disabled", "error", err)
		} else {
			archiver.Start()
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				archiver.Stop(stopCtx)
			}()
		}
	}

	ln, err := listener.Bind(ip, port, filepath.Clean(portFile), logger)
	if err != nil {
		return fmt.Errorf("binding listener: %w", err)
	}
	defer ln.Close()
	fmt.Printf("Server running on ip %s port %d\n", ip, ln.Port())

	codec := protocol.Default()
	w := worker.New(codec, st, cfg.ReadTimeout, logger)

	serveErr := ln.Serve(ctx, func(conn net.Conn) {
		w.Handle(conn)
	})

	select {
	case err := <-coordErrCh:
		if err != nil {
			return fmt.Errorf("coordinator terminated: %w", err)
		}
	default:
	}

	return serveErr
}

func sinkDescriptor(cfg *config.ServerConfig) sink.Descriptor {
	return sink.Descriptor{
		Kind:                 cfg.Sink.Kind,
		Schema:               cfg.Schema,
		Bucket:               cfg.Sink.Bucket,
		Region:               cfg.Sink.Region,
		Prefix:               cfg.Sink.Prefix,
		RateLimitBytesPerSec: int64(cfg.Sink.RateLimitBytesPerSec),
		SpoolDir:             cfg.Sink.SpoolDir,
		MaxSpoolBatches:      cfg.Sink.MaxSpoolBatches,
	}
}

func promptSinkCredentials(sc *config.SinkConfig) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("S3 bucket: ")
	bucket, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	fmt.Print("AWS region: ")
	region, err := reader.ReadString('\n')
	if err != nil {
		return err
	}

	sc.Kind = "s3"
	sc.Bucket = trimNewline(bucket)
	sc.Region = trimNewline(region)
	return nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/lenseval/pkg/logging"
)

// logExportEnv names a file that receives a plain-text copy of every
// log entry, independent of the stderr stream.
const logExportEnv = "LENSEVAL_LOG_EXPORT"

var logger *logging.Logger

func main() {
	os.Exit(run())
}

func run() int {
	var cleanup func()
	logger, cleanup = buildLogger()
	defer cleanup()

	shutdown, err := setupTracing(os.Getenv(traceExporterEnv), nil)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	// A run aborted by signal still flushes completed results into a
	// partial report.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "error", err)
		return 1
	}
	return 0
}

// buildLogger constructs the process logger. When logExportEnv names a
// file, a WriterExporter mirrors every entry there; otherwise a
// NopExporter keeps the export path explicit but silent.
func buildLogger() (*logging.Logger, func()) {
	var exporter logging.LogExporter = &logging.NopExporter{}
	var exportFile *os.File
	if path := os.Getenv(logExportEnv); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err == nil {
			exportFile = f
			exporter = logging.NewWriterExporter(f)
		}
	}

	l := logging.New(logging.Config{Service: "lenseval", Exporter: exporter})
	cleanup := func() {
		_ = l.Close()
		if exportFile != nil {
			_ = exportFile.Close()
		}
	}
	return l, cleanup
}

package loadgen

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/postflow/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging initializes the global logger and mirrors the standard
// logger to both console and file. If logFile is empty, a timestamped
// filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "publish_load_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	log.SetOutput(io.MultiWriter(os.Stdout, file))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the load tool.
func ShowHelp() {
	os.Stdout.WriteString(`postflow Publish Load Tool
==========================

Publishes posts concurrently as many authors, then reads every post and
each author's badges back to check what the service stored.

Usage:
  go run ./cmd/publish-load [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -users int
        Number of distinct authors (default 100)
  -posts int
        Publish attempts per author; attempts inside the cooldown expect 429 (default 2)
  -assets int
        Images per post (default 2)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -secret string
        JWT secret shared with the service (default $POSTFLOW_JWT_SECRET)
  -issuer string
        JWT issuer expected by the service (default "postflow")
  -log string
        Log file for run output (default: publish_load_TIMESTAMP.log)
  -verbose
        Log every failed request
  -help
        Show this help message

Examples:
  POSTFLOW_JWT_SECRET=dev go run ./cmd/publish-load -users 500 -workers 32
`)
}

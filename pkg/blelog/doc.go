// Package blelog provides structured protocol capture for the BLE112 link.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (link frames, decoded commands
// and events, engine state changes). It is separate from operational logging
// (slog) - protocol capture provides a complete machine-readable trace of
// one discovery pass for debugging and analysis.
//
// # Basic Usage
//
// Applications configure capture by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.Capture = blelog.NewSlogAdapter(slog.Default())
//
//	// For later analysis: write to binary file
//	cfg.Capture, _ = blelog.NewFileLogger("scan.blog")
//
//	// Both: use MultiLogger
//	cfg.Capture = blelog.NewMultiLogger(
//	    blelog.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Capture files use CBOR encoding with .blog extension. Reader streams
// events back out with optional filtering.
package blelog

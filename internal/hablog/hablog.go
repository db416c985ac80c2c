// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package hablog wraps the stdlib log package with per-plan prefixing, so
// interleaved concurrent build output stays attributable to the plan that
// produced it.
package hablog

import (
	"io"
	"log"
	"os"
)

// Logger prefixes every line it writes with "[origin/name] ".
type Logger struct {
	*log.Logger
}

// New constructs a Logger writing to out with plan as its prefix.
func New(out io.Writer, plan string) *Logger {
	return &Logger{Logger: log.New(out, "["+plan+"] ", log.LstdFlags)}
}

// Default constructs a Logger writing to os.Stderr, matching
// log.Default()'s destination.
func Default(plan string) *Logger {
	return New(os.Stderr, plan)
}

// Writer adapts the Logger to io.Writer, so it can be handed directly to
// anything expecting a plain output sink (e.g. buildexec.BuildRequest's
// combined stdout/stderr writer) while still going through per-plan
// prefixing and stdlib log's own framing.
func (l *Logger) Writer() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		l.Output(2, string(p))
		return len(p), nil
	})
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

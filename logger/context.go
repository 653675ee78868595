// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package logger

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
)

const RunIDFieldKey = "run-id"

var GlobalLogger = log.With().Str(RunIDFieldKey, "global").Logger()

// NewRunID generates the identifier that tags all log lines of one
// harvest run
func NewRunID() string {
	return ksuid.New().String()
}

// RunScopedContext returns a context that contains a logger which logs the run ID.
// Given a context, a logger can be retrieved as follows
//
//	ctx := RunScopedContext(context.Background(), "run-id")
//	log := FromContext(ctx)
//	log.Debug().Msg("hello")
func RunScopedContext(ctx context.Context, runID string) context.Context {
	if runID == "" {
		// The leading underscore indicates the run id was generated here
		// instead of being handed in by the command layer
		runID = "_" + NewRunID()
	}
	l := log.With().Str(RunIDFieldKey, runID).Logger()
	return l.WithContext(ctx)
}

// FromContext returns the logger in the context if present, otherwise it
// returns the default logger
func FromContext(ctx context.Context) *zerolog.Logger {
	l := log.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		// If a context logger was not set, we'll return our global
		// logger instead of the default noop logger
		return &GlobalLogger
	}
	return l
}

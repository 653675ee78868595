// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package converge drives remote cleanup operations that need repeated
// query and act rounds until the backlog drains. The loop is bounded in
// both directions, it gives up after a fixed number of rounds and as soon
// as a round stops making progress, so a service that keeps refilling its
// queue cannot spin it forever.
package converge

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultMaxRounds caps the loop when the caller does not.
const DefaultMaxRounds = 25

// Step runs one query and act round. It reports how many items are still
// left remotely and how many this round acted on.
type Step func(ctx context.Context) (remaining, acted int, err error)

// Options configure a Run.
type Options struct {
	// MaxRounds caps the loop, 0 means DefaultMaxRounds
	MaxRounds int
	// Pause waits between rounds, there is no backoff
	Pause time.Duration

	sleep func(time.Duration)
}

// Result describes how a Run ended.
type Result struct {
	Rounds    int
	Acted     int
	Converged bool
}

// RoundLimitError reports that the round cap was hit with items left.
type RoundLimitError struct {
	Rounds    int
	Remaining int
}

func (e *RoundLimitError) Error() string {
	return fmt.Sprintf("gave up after %d rounds with %d items remaining", e.Rounds, e.Remaining)
}

// NoProgressError reports a round that acted on nothing while the backlog
// stayed the same.
type NoProgressError struct {
	Round     int
	Remaining int
}

func (e *NoProgressError) Error() string {
	return fmt.Sprintf("round %d made no progress, %d items remaining", e.Round, e.Remaining)
}

// Run executes step until the backlog is gone, the round cap is reached
// or a round makes no progress. Step errors abort immediately. The
// partial Result is returned alongside any error.
func Run(ctx context.Context, opts Options, step Step) (*Result, error) {
	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	sleep := opts.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	result := &Result{}
	lastRemaining := -1
	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		remaining, acted, err := step(ctx)
		if err != nil {
			return result, err
		}
		result.Rounds = round
		result.Acted += acted

		log.Debug().
			Int("round", round).
			Int("acted", acted).
			Int("remaining", remaining).
			Msg("convergence round done")

		if remaining == 0 {
			result.Converged = true
			return result, nil
		}
		if acted == 0 && lastRemaining >= 0 && remaining >= lastRemaining {
			return result, &NoProgressError{Round: round, Remaining: remaining}
		}
		if round >= maxRounds {
			return result, &RoundLimitError{Rounds: round, Remaining: remaining}
		}

		lastRemaining = remaining
		if opts.Pause > 0 {
			sleep(opts.Pause)
		}
	}
}

// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package harvest

import (
	"time"

	"github.com/rs/zerolog/log"
)

// RateLimit caps how many requests the client sends per window. The zero
// value disables pacing.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

func (r RateLimit) enabled() bool {
	return r.Requests > 0 && r.Window > 0
}

// pacer enforces a RateLimit by sleeping out the remainder of the window
// once the request budget is spent. There is no smoothing within a window,
// requests run at full speed until the budget hits zero.
type pacer struct {
	limit RateLimit
	now   func() time.Time
	sleep func(time.Duration)

	windowStart time.Time
	count       int
	pauses      int
}

func newPacer(limit RateLimit) *pacer {
	return &pacer{
		limit: limit,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// wait blocks until the next request may be sent.
func (p *pacer) wait() {
	if !p.limit.enabled() {
		return
	}

	now := p.now()
	if p.windowStart.IsZero() || now.Sub(p.windowStart) >= p.limit.Window {
		p.windowStart = now
		p.count = 0
	}

	if p.count >= p.limit.Requests {
		rest := p.limit.Window - now.Sub(p.windowStart)
		if rest > 0 {
			log.Debug().Dur("pause", rest).Msg("request budget spent, waiting for the next window")
			p.sleep(rest)
			p.pauses++
		}
		p.windowStart = p.now()
		p.count = 0
	}

	p.count++
}

// spacer inserts a fixed delay between consecutive calls. The first call
// goes out immediately.
type spacer struct {
	delay time.Duration
	sleep func(time.Duration)
	calls int
}

func newSpacer(delay time.Duration) *spacer {
	return &spacer{
		delay: delay,
		sleep: time.Sleep,
	}
}

func (s *spacer) wait() {
	if s.delay > 0 && s.calls > 0 {
		s.sleep(s.delay)
	}
	s.calls++
}

// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerPausesWhenBudgetIsSpent(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var pauses []time.Duration

	p := newPacer(RateLimit{Requests: 50, Window: 30 * time.Second})
	p.now = func() time.Time { return now }
	p.sleep = func(d time.Duration) {
		pauses = append(pauses, d)
		now = now.Add(d)
	}

	// 120 instantaneous requests against a 50 per 30s budget pause twice,
	// the last 20 requests fit into the third window
	for i := 0; i < 120; i++ {
		p.wait()
	}

	require.Len(t, pauses, 2)
	assert.Equal(t, 30*time.Second, pauses[0])
	assert.Equal(t, 30*time.Second, pauses[1])
}

func TestPacerSleepsOnlyTheWindowRemainder(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var pauses []time.Duration

	p := newPacer(RateLimit{Requests: 3, Window: 30 * time.Second})
	p.now = func() time.Time { return now }
	p.sleep = func(d time.Duration) {
		pauses = append(pauses, d)
		now = now.Add(d)
	}

	for i := 0; i < 4; i++ {
		p.wait()
		// every request takes two seconds
		now = now.Add(2 * time.Second)
	}

	// budget spent after 3 requests and 6 elapsed seconds, so the pause
	// only covers the 24 seconds left in the window
	require.Len(t, pauses, 1)
	assert.Equal(t, 24*time.Second, pauses[0])
}

func TestPacerSlowTrafficNeverPauses(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	slept := 0

	p := newPacer(RateLimit{Requests: 50, Window: 30 * time.Second})
	p.now = func() time.Time { return now }
	p.sleep = func(time.Duration) { slept++ }

	// one request per second expires the window long before the budget
	for i := 0; i < 120; i++ {
		p.wait()
		now = now.Add(time.Second)
	}

	assert.Equal(t, 0, slept)
}

func TestPacerDisabled(t *testing.T) {
	p := newPacer(RateLimit{})
	p.sleep = func(time.Duration) { t.Fatal("zero rate limit must not sleep") }

	for i := 0; i < 1000; i++ {
		p.wait()
	}
}

func TestSpacerFirstCallIsImmediate(t *testing.T) {
	var sleeps []time.Duration

	s := newSpacer(time.Second)
	s.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	for i := 0; i < 5; i++ {
		s.wait()
	}

	// n calls sleep n-1 times
	require.Len(t, sleeps, 4)
	for _, d := range sleeps {
		assert.Equal(t, time.Second, d)
	}
}

func TestSpacerZeroDelay(t *testing.T) {
	s := newSpacer(0)
	s.sleep = func(time.Duration) { t.Fatal("zero delay must not sleep") }

	s.wait()
	s.wait()
}

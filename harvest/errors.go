// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package harvest

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// TransportError covers request failures, non-2xx responses and malformed
// response bodies. Status is zero when the request never produced a response.
type TransportError struct {
	Op     string
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s returned status %d", e.Op, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitError signals that the service rejected a request with HTTP 429.
// It is never retried here, callers decide how to proceed. RetryAfter is
// zero when the service did not send the header.
type RateLimitError struct {
	URL        string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.URL, e.RetryAfter)
	}
	return "rate limit exceeded for " + e.URL
}

func retryAfter(res *http.Response) time.Duration {
	raw := res.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(raw); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package harvest

import (
	"context"

	"github.com/cockroachdb/errors"

	"go.mondoo.com/cnharvest/logger"
)

// pageEnvelope is the response shape of a collection page. Services either
// send items/totalCount or the OData value/@odata.count pair.
type pageEnvelope struct {
	Items      []RawRecord `json:"items"`
	Value      []RawRecord `json:"value"`
	TotalCount *int        `json:"totalCount"`
	ODataCount *int        `json:"@odata.count"`
}

func (e *pageEnvelope) items() []RawRecord {
	if e.Items != nil {
		return e.Items
	}
	return e.Value
}

// total returns the reported collection size or -1 when the service did
// not include a count.
func (e *pageEnvelope) total() int {
	if e.TotalCount != nil {
		return *e.TotalCount
	}
	if e.ODataCount != nil {
		return *e.ODataCount
	}
	return -1
}

// Harvest iterates one endpoint in the manner of bufio.Scanner:
//
//	it := client.Harvest(ctx, ep)
//	for it.Scan() {
//		rec := it.Record()
//	}
//	if err := it.Err(); err != nil { ... }
//
// The offset advances by the number of records the service actually
// returned, short pages cause no gaps and no duplicates. Iteration stops
// once the offset reaches the reported total, or on the first empty page
// when the service reports no total.
type Harvest struct {
	client *Client
	ep     Endpoint
	ctx    context.Context

	buf      []RawRecord
	cur      RawRecord
	offset   int
	total    int
	pages    int
	seen     int
	filtered int
	done     bool
	err      error
}

// Scan advances to the next record, fetching pages as needed. It returns
// false when the collection is exhausted or an error occurred.
func (h *Harvest) Scan() bool {
	if h.err != nil {
		return false
	}
	for {
		if len(h.buf) > 0 {
			h.cur = h.buf[0]
			h.buf = h.buf[1:]
			h.seen++
			return true
		}
		if h.done {
			return false
		}
		if err := h.fetch(); err != nil {
			h.err = err
			return false
		}
	}
}

// Record returns the record of the last successful Scan.
func (h *Harvest) Record() RawRecord { return h.cur }

// Err returns the error that stopped iteration, nil after a clean end.
func (h *Harvest) Err() error { return h.err }

// Pages returns how many pages were fetched so far.
func (h *Harvest) Pages() int { return h.pages }

// Seen returns how many records were handed out so far.
func (h *Harvest) Seen() int { return h.seen }

// Filtered returns how many records the time filter dropped.
func (h *Harvest) Filtered() int { return h.filtered }

// Total returns the collection size the service reported, or -1 if it
// never did.
func (h *Harvest) Total() int { return h.total }

// Collect drains the iterator into a slice.
func (h *Harvest) Collect() ([]RawRecord, error) {
	var out []RawRecord
	for h.Scan() {
		out = append(out, h.Record())
	}
	return out, h.Err()
}

func (h *Harvest) fetch() error {
	env, err := h.client.fetchPage(h.ctx, h.ep, h.offset)
	if err != nil {
		return err
	}
	h.pages++

	items := env.items()
	logger.FromContext(h.ctx).Debug().
		Str("endpoint", h.ep.Name).
		Int("offset", h.offset).
		Int("count", len(items)).
		Int("total", env.total()).
		Msg("fetched page")

	// the service decides the page size, we only request an upper bound
	h.offset += len(items)
	if t := env.total(); t >= 0 {
		h.total = t
		if h.offset >= t {
			h.done = true
		}
	}

	if len(items) == 0 {
		// defensive stop, also the regular end when no total is reported
		h.done = true
		return nil
	}

	kept := make([]RawRecord, 0, len(items))
	for i := range items {
		if h.ep.Schema != nil {
			if err := h.ep.Schema.Validate(items[i]); err != nil {
				return errors.Wrapf(err, "invalid record from %s", h.ep.Name)
			}
		}
		if h.ep.MinTime != nil && !h.ep.MinTime.keep(items[i]) {
			h.filtered++
			continue
		}
		kept = append(kept, items[i])
	}
	h.buf = kept
	return nil
}

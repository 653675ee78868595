// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package harvest

import (
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultPageSize is used when an endpoint does not set its own.
const DefaultPageSize = 100

// Endpoint describes one paginated record collection.
type Endpoint struct {
	// Name tags log lines and run summaries
	Name string
	// Path is resolved against the client base URL
	Path string
	// PageSize is the upper bound we request per page, services are free
	// to return fewer records
	PageSize int
	// Query carries extra query parameters, e.g. server side filters
	Query url.Values
	// Schema validates every record at the boundary when set
	Schema *Schema
	// MinTime drops records whose timestamp is not after the threshold
	MinTime *TimeFilter
}

func (ep Endpoint) pageSize() int {
	if ep.PageSize > 0 {
		return ep.PageSize
	}
	return DefaultPageSize
}

// TimeFilter keeps only records whose Field parses to a timestamp strictly
// after After.
type TimeFilter struct {
	Field string
	After time.Time
}

// keep decides whether the record passes the filter. Records without a
// usable timestamp are dropped, services hand those back for entries that
// were never dated.
func (f *TimeFilter) keep(rec RawRecord) bool {
	ts, err := rec.Time(f.Field)
	if err != nil {
		log.Debug().Err(err).Str("field", f.Field).Msg("dropping record without usable timestamp")
		return false
	}
	return ts.After(f.After)
}

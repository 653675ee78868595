// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mondoo.com/cnharvest/harvest"
	"go.mondoo.com/cnharvest/reporter"
)

func basicTable() *Table {
	return NewTable(
		Entry{Prefix: "10.120.26.0/24", Scope: "SCCM Production", Site: "Berlin HQ"},
		Entry{Prefix: "10.120.27.", Scope: "SCCM Production", Site: "Hamburg DC"},
	)
}

func newTestJoiner(t *testing.T, opts Options) *Joiner {
	t.Helper()
	j, err := NewJoiner(opts)
	require.NoError(t, err)
	return j
}

func baseRow() *reporter.Record {
	return reporter.NewRecord().Set("ComputerName", "host-001")
}

func TestJoinFlatten(t *testing.T) {
	j := newTestJoiner(t, Options{
		Table:     basicTable(),
		Mode:      Flatten,
		Selectors: []string{"*IpAddress*"},
	})

	rec := harvest.RawRecord{
		"computerDnsName":       "host-001.corp.local",
		"lastIpAddress":         "10.120.26.55",
		"lastExternalIpAddress": "81.2.69.142",
	}

	rows := j.Join(rec, baseRow())
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, []string{"ComputerName", "IPAddress", "Subnet", "Scope", "Site"}, row.Fields())
	assert.Equal(t, "host-001", row.Get("ComputerName"))
	// candidate fields walk in sorted order, the external address first
	assert.Equal(t, "81.2.69.142,10.120.26.55", row.Get("IPAddress"))
	assert.Equal(t, ",10.120.26.0/24", row.Get("Subnet"))
	assert.Equal(t, "No Match,Berlin HQ", row.Get("Site"))
}

func TestJoinExplodeSplitsDelimitedCandidates(t *testing.T) {
	j := newTestJoiner(t, Options{
		Table:     basicTable(),
		Mode:      Explode,
		Selectors: []string{"ipAddresses"},
	})

	rec := harvest.RawRecord{"ipAddresses": "10.120.26.55; 10.120.27.3 10.9.9.9"}

	rows := j.Join(rec, baseRow())
	require.Len(t, rows, 3)

	assert.Equal(t, "10.120.26.55", rows[0].Get("IPAddress"))
	assert.Equal(t, "Berlin HQ", rows[0].Get("Site"))
	assert.Equal(t, "10.120.27.3", rows[1].Get("IPAddress"))
	assert.Equal(t, "Hamburg DC", rows[1].Get("Site"))
	assert.Equal(t, "10.9.9.9", rows[2].Get("IPAddress"))
	assert.Equal(t, NoMatch, rows[2].Get("Site"))
	assert.Equal(t, "", rows[2].Get("Subnet"))

	for _, row := range rows {
		assert.Equal(t, "host-001", row.Get("ComputerName"))
	}
}

func TestJoinExplodeListField(t *testing.T) {
	j := newTestJoiner(t, Options{
		Table:     basicTable(),
		Mode:      Explode,
		Selectors: []string{"ipAddresses"},
	})

	rec := harvest.RawRecord{"ipAddresses": []interface{}{"10.120.26.55", "10.120.27.3"}}

	rows := j.Join(rec, baseRow())
	require.Len(t, rows, 2)
	assert.Equal(t, "Berlin HQ", rows[0].Get("Site"))
	assert.Equal(t, "Hamburg DC", rows[1].Get("Site"))
}

func TestJoinCandidateMatchingMultipleScopes(t *testing.T) {
	table := NewTable(
		Entry{Prefix: "10.120.26.0/24", Scope: "SCCM Production", Site: "Berlin HQ"},
		Entry{Prefix: "10.120.26.0/24", Scope: "SCCM Staging", Site: "Berlin Staging"},
	)
	j := newTestJoiner(t, Options{Table: table, Mode: Explode, Selectors: []string{"ip"}})

	rows := j.Join(harvest.RawRecord{"ip": "10.120.26.55"}, baseRow())
	require.Len(t, rows, 2)
	assert.Equal(t, "SCCM Production", rows[0].Get("Scope"))
	assert.Equal(t, "SCCM Staging", rows[1].Get("Scope"))
}

func TestJoinMatchVerdicts(t *testing.T) {
	table := NewTable(Entry{Prefix: "10.120.26.", Site: "Berlin HQ"})

	for _, mm := range []MatchMode{MatchMasked, MatchPrefix} {
		j := newTestJoiner(t, Options{Table: table, Mode: Explode, Match: mm, Selectors: []string{"ip"}})

		rows := j.Join(harvest.RawRecord{"ip": "10.120.26.55"}, baseRow())
		require.Len(t, rows, 1)
		assert.Equal(t, "Berlin HQ", rows[0].Get("Site"))

		rows = j.Join(harvest.RawRecord{"ip": "10.120.27.1"}, baseRow())
		require.Len(t, rows, 1)
		assert.Equal(t, NoMatch, rows[0].Get("Site"))
	}
}

func TestJoinMaskLengthParameter(t *testing.T) {
	table := NewTable(Entry{Prefix: "10.120.16.0", Site: "Campus West"})

	t.Run("a 20 covers the neighborhood", func(t *testing.T) {
		j := newTestJoiner(t, Options{Table: table, Mode: Explode, MaskLen: 20, Selectors: []string{"ip"}})
		rows := j.Join(harvest.RawRecord{"ip": "10.120.26.55"}, baseRow())
		require.Len(t, rows, 1)
		assert.Equal(t, "Campus West", rows[0].Get("Site"))
	})

	t.Run("the default 24 does not", func(t *testing.T) {
		j := newTestJoiner(t, Options{Table: table, Mode: Explode, Selectors: []string{"ip"}})
		rows := j.Join(harvest.RawRecord{"ip": "10.120.26.55"}, baseRow())
		require.Len(t, rows, 1)
		assert.Equal(t, NoMatch, rows[0].Get("Site"))
	})

	t.Run("prefix matching cannot express a 20", func(t *testing.T) {
		j := newTestJoiner(t, Options{Table: table, Mode: Explode, Match: MatchPrefix, MaskLen: 20, Selectors: []string{"ip"}})
		rows := j.Join(harvest.RawRecord{"ip": "10.120.26.55"}, baseRow())
		require.Len(t, rows, 1)
		assert.Equal(t, NoMatch, rows[0].Get("Site"))
	})
}

func TestJoinUnparseableCandidate(t *testing.T) {
	j := newTestJoiner(t, Options{Table: basicTable(), Mode: Explode, Selectors: []string{"ip"}})

	rows := j.Join(harvest.RawRecord{"ip": "not-an-address"}, baseRow())
	require.Len(t, rows, 1)
	assert.Equal(t, NoMatch, rows[0].Get("Site"))
}

func TestJoinRecordWithoutCandidates(t *testing.T) {
	rec := harvest.RawRecord{"computerDnsName": "host-002.corp.local"}

	t.Run("dropped by default", func(t *testing.T) {
		j := newTestJoiner(t, Options{Table: basicTable(), Selectors: []string{"*IpAddress*"}})
		assert.Nil(t, j.Join(rec, baseRow()))
	})

	t.Run("kept with empty lookup columns", func(t *testing.T) {
		j := newTestJoiner(t, Options{Table: basicTable(), Selectors: []string{"*IpAddress*"}, KeepEmpty: true})
		rows := j.Join(rec, baseRow())
		require.Len(t, rows, 1)
		// the shape matches rows that had candidates
		assert.Equal(t, []string{"ComputerName", "IPAddress", "Subnet", "Scope", "Site"}, rows[0].Fields())
		assert.Equal(t, "", rows[0].Get("Site"))
	})
}

func TestNewJoinerValidation(t *testing.T) {
	t.Run("requires a table", func(t *testing.T) {
		_, err := NewJoiner(Options{})
		assert.Error(t, err)
	})

	t.Run("mask length range", func(t *testing.T) {
		_, err := NewJoiner(Options{Table: basicTable(), MaskLen: 33})
		assert.Error(t, err)
		_, err = NewJoiner(Options{Table: basicTable(), MaskLen: -1})
		assert.Error(t, err)
	})

	t.Run("invalid selector", func(t *testing.T) {
		_, err := NewJoiner(Options{Table: basicTable(), Selectors: []string{"["}})
		assert.Error(t, err)
	})

	t.Run("masked mode needs parseable bases", func(t *testing.T) {
		_, err := NewJoiner(Options{Table: NewTable(Entry{Prefix: "datacenter-west", Site: "X"})})
		assert.Error(t, err)
	})
}

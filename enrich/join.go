// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package enrich

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"

	"go.mondoo.com/cnharvest/harvest"
	"go.mondoo.com/cnharvest/reporter"
)

// NoMatch is the site reported for candidates no reference entry covers.
const NoMatch = "No Match"

// Mode decides the output shape of a join.
type Mode int

const (
	// Flatten produces one row per record, multiple lookup results are
	// joined into delimited cells
	Flatten Mode = iota
	// Explode produces one row per record, candidate and match
	Explode
)

// MatchMode selects the lookup predicate.
type MatchMode int

const (
	// MatchMasked compares addresses as masked integers
	MatchMasked MatchMode = iota
	// MatchPrefix compares the literal address string against the table
	// prefix, the legacy shortcut for /24 tables
	MatchPrefix
)

// Options configure a Joiner.
type Options struct {
	Table *Table
	Mode  Mode
	Match MatchMode
	// MaskLen is the subnet size for masked matching, 0 means /24
	MaskLen int
	// Selectors are glob patterns naming the record fields that hold
	// address candidates, e.g. "*IpAddress*"
	Selectors []string
	// KeepEmpty passes records without any candidate through with empty
	// lookup columns instead of dropping them
	KeepEmpty bool
	// Delimiter joins multiple values in Flatten mode, default ","
	Delimiter string
}

// Joiner enriches harvested records with the site that owns their
// addresses.
type Joiner struct {
	table     *Table
	mode      Mode
	match     MatchMode
	maskLen   int
	selectors []glob.Glob
	keepEmpty bool
	delim     string
	networks  []network
}

type network struct {
	base  uint32
	entry *Entry
}

type match struct {
	subnet string
	scope  string
	site   string
}

func NewJoiner(opts Options) (*Joiner, error) {
	if opts.Table == nil || opts.Table.Len() == 0 {
		return nil, errors.New("joiner requires a reference table")
	}

	maskLen := opts.MaskLen
	if maskLen == 0 {
		maskLen = DefaultMaskLen
	}
	if maskLen < 1 || maskLen > 32 {
		return nil, errors.Newf("mask length %d is out of range", maskLen)
	}

	delim := opts.Delimiter
	if delim == "" {
		delim = ","
	}

	j := &Joiner{
		table:     opts.Table,
		mode:      opts.Mode,
		match:     opts.Match,
		maskLen:   maskLen,
		keepEmpty: opts.KeepEmpty,
		delim:     delim,
	}

	for _, sel := range opts.Selectors {
		g, err := glob.Compile(sel)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid field selector %s", sel)
		}
		j.selectors = append(j.selectors, g)
	}

	if opts.Match == MatchMasked {
		entries := opts.Table.entries
		for i := range entries {
			base, err := entries[i].baseIP()
			if err != nil {
				log.Warn().Str("prefix", entries[i].Prefix).Msg("reference entry has no usable network base, skipping")
				continue
			}
			j.networks = append(j.networks, network{base: base, entry: &entries[i]})
		}
		if len(j.networks) == 0 {
			return nil, errors.New("no reference entry has a usable network base")
		}
	}
	return j, nil
}

// Candidates extracts the address candidates of a record. Fields are
// chosen by the selectors and walked in sorted order, list values are
// taken element-wise and scalars split on commas, semicolons and
// whitespace.
func (j *Joiner) Candidates(rec harvest.RawRecord) []string {
	var fields []string
	for key := range rec {
		for _, g := range j.selectors {
			if g.Match(key) {
				fields = append(fields, key)
				break
			}
		}
	}
	sort.Strings(fields)

	var out []string
	for _, f := range fields {
		out = append(out, rec.Strings(f)...)
	}
	return out
}

// Join appends the lookup columns IPAddress, Subnet, Scope and Site to a
// copy of base and returns the report rows for one record. Flatten mode
// returns a single row, Explode mode one row per candidate and match.
// Records without candidates return no rows unless KeepEmpty is set.
func (j *Joiner) Join(rec harvest.RawRecord, base *reporter.Record) []*reporter.Record {
	cands := j.Candidates(rec)
	if len(cands) == 0 {
		if !j.keepEmpty {
			return nil
		}
		return []*reporter.Record{emptyJoin(base)}
	}

	if j.mode == Explode {
		var rows []*reporter.Record
		for _, cand := range cands {
			for _, m := range j.matchCandidate(cand) {
				rows = append(rows, base.Clone().
					Set("IPAddress", cand).
					Set("Subnet", m.subnet).
					Set("Scope", m.scope).
					Set("Site", m.site))
			}
		}
		return rows
	}

	var addrs, subnets, scopes, sites []string
	for _, cand := range cands {
		for _, m := range j.matchCandidate(cand) {
			addrs = append(addrs, cand)
			subnets = append(subnets, m.subnet)
			scopes = append(scopes, m.scope)
			sites = append(sites, m.site)
		}
	}
	return []*reporter.Record{base.Clone().
		Set("IPAddress", strings.Join(addrs, j.delim)).
		Set("Subnet", strings.Join(subnets, j.delim)).
		Set("Scope", strings.Join(scopes, j.delim)).
		Set("Site", strings.Join(sites, j.delim))}
}

// matchCandidate returns every reference entry covering the candidate, in
// table order. Candidates nothing covers yield the NoMatch sentinel.
func (j *Joiner) matchCandidate(cand string) []match {
	var out []match

	switch j.match {
	case MatchPrefix:
		entries := j.table.entries
		for i := range entries {
			if PrefixMatch(cand, entries[i].prefixLiteral()) {
				out = append(out, match{subnet: entries[i].Prefix, scope: entries[i].Scope, site: entries[i].Site})
			}
		}
	default:
		ip, err := ParseIPv4(cand)
		if err != nil {
			log.Debug().Str("candidate", cand).Msg("candidate is not an IPv4 address")
			break
		}
		for i := range j.networks {
			if SameSubnet(ip, j.networks[i].base, j.maskLen) {
				e := j.networks[i].entry
				out = append(out, match{subnet: e.Prefix, scope: e.Scope, site: e.Site})
			}
		}
	}

	if len(out) == 0 {
		out = append(out, match{site: NoMatch})
	}
	return out
}

func emptyJoin(base *reporter.Record) *reporter.Record {
	return base.Clone().
		Set("IPAddress", "").
		Set("Subnet", "").
		Set("Scope", "").
		Set("Site", "")
}

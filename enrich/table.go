// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package enrich

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
)

// Entry is one reference row, a subnet mapped to the site that runs it.
// Prefix keeps the raw table value, "10.120.26.", "10.120.26.0" and
// "10.120.26.0/24" are all accepted.
type Entry struct {
	Prefix string
	Scope  string
	Site   string
}

// prefixLiteral normalizes the entry for literal prefix matching,
// "10.120.26.0/24" and "10.120.26" both become "10.120.26.".
func (e Entry) prefixLiteral() string {
	p := e.Prefix
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	if strings.HasSuffix(p, ".0") {
		p = p[:len(p)-1]
	}
	if p != "" && !strings.HasSuffix(p, ".") {
		p += "."
	}
	return p
}

// baseIP parses the entry into its network base address for masked
// matching. Partial prefixes pad with zero octets, "10.120.26." becomes
// 10.120.26.0.
func (e Entry) baseIP() (uint32, error) {
	p := e.Prefix
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSuffix(p, ".")
	for strings.Count(p, ".") < 3 {
		p += ".0"
	}
	return ParseIPv4(p)
}

// Table is an immutable set of reference entries in file order.
type Table struct {
	entries []Entry
}

func NewTable(entries ...Entry) *Table {
	return &Table{entries: entries}
}

func (t *Table) Entries() []Entry { return t.entries }
func (t *Table) Len() int         { return len(t.entries) }

// LoadError is fatal, a run without its reference table would produce a
// report full of unmatched records.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("cannot load reference table %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadTable reads a delimited reference table. The header must name a
// subnet and a site column, a scope column is optional. Column names are
// matched case insensitively, rows without a subnet are skipped.
func LoadTable(fs afero.Fs, path string) (*Table, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if len(rows) == 0 {
		return nil, &LoadError{Path: path, Err: errors.New("table is empty")}
	}

	prefixCol, scopeCol, siteCol := -1, -1, -1
	for i, name := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "subnet", "prefix", "network":
			prefixCol = i
		case "scope", "scopename":
			scopeCol = i
		case "site", "sitename", "name", "location":
			siteCol = i
		}
	}
	if prefixCol < 0 || siteCol < 0 {
		return nil, &LoadError{Path: path, Err: errors.New("header must name a subnet and a site column")}
	}

	entries := make([]Entry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		prefix := strings.TrimSpace(row[prefixCol])
		if prefix == "" {
			continue
		}
		e := Entry{Prefix: prefix, Site: strings.TrimSpace(row[siteCol])}
		if scopeCol >= 0 {
			e.Scope = strings.TrimSpace(row[scopeCol])
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, &LoadError{Path: path, Err: errors.New("table has no entries")}
	}
	return &Table{entries: entries}, nil
}

// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package reporter writes harvested records to CSV report files. Records
// keep their field order, the first record written decides the header and
// every later record has to match it.
package reporter

// Record is one ordered report row. The order in which fields are first
// set is the column order.
type Record struct {
	fields []string
	values map[string]string
}

func NewRecord() *Record {
	return &Record{
		values: map[string]string{},
	}
}

// Set stores a field value. The first Set of a field appends a column,
// setting it again overwrites the value in place.
func (r *Record) Set(field, value string) *Record {
	if _, ok := r.values[field]; !ok {
		r.fields = append(r.fields, field)
	}
	r.values[field] = value
	return r
}

// Get returns the value of a field, the empty string when unset.
func (r *Record) Get(field string) string {
	return r.values[field]
}

// Fields returns the column names in order.
func (r *Record) Fields() []string {
	out := make([]string, len(r.fields))
	copy(out, r.fields)
	return out
}

// Values returns the row values in column order.
func (r *Record) Values() []string {
	out := make([]string, len(r.fields))
	for i := range r.fields {
		out[i] = r.values[r.fields[i]]
	}
	return out
}

// Clone returns an independent copy of the record.
func (r *Record) Clone() *Record {
	c := &Record{
		fields: make([]string, len(r.fields)),
		values: make(map[string]string, len(r.values)),
	}
	copy(c.fields, r.fields)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

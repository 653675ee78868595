// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package cmd

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mondoo.com/cnharvest/reporter"
)

func TestSortSubnetCmd_AllFlags(t *testing.T) {
	expectedFlags := []struct {
		name         string
		shorthand    string
		defaultValue string
		flagType     string
	}{
		{"input", "i", "", "string"},
		{"output", "o", "sorted.csv", "string"},
		{"ceiling", "", "0", "int"},
		{"append", "", "false", "bool"},
		{"table", "", "", "string"},
		{"mask-length", "", "0", "int"},
		{"selector", "", "[IPAddress]", "stringSlice"},
		{"explode", "", "true", "bool"},
		{"prefix-match", "", "false", "bool"},
		{"keep-empty", "", "false", "bool"},
	}

	for _, ef := range expectedFlags {
		t.Run(ef.name, func(t *testing.T) {
			flag := sortSubnetCmd.Flags().Lookup(ef.name)
			require.NotNil(t, flag, "flag %s should be defined", ef.name)
			assert.Equal(t, ef.defaultValue, flag.DefValue, "flag %s default value mismatch", ef.name)
			assert.Equal(t, ef.flagType, flag.Value.Type(), "flag %s type mismatch", ef.name)
			if ef.shorthand != "" {
				assert.Equal(t, ef.shorthand, flag.Shorthand, "flag %s shorthand mismatch", ef.name)
			}
		})
	}
}

func TestReadCSVRecords(t *testing.T) {
	fs := afero.NewMemMapFs()
	report := "ComputerName,IPAddress\n" +
		"srv-01, 10.120.26.55\n" +
		"srv-02,10.99.1.7\n"
	require.NoError(t, afero.WriteFile(fs, "report.csv", []byte(report), 0o644))

	header, rows, err := readCSVRecords(fs, "report.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"ComputerName", "IPAddress"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"srv-01", "10.120.26.55"}, rows[0])
	assert.Equal(t, []string{"srv-02", "10.99.1.7"}, rows[1])
}

func TestReadCSVRecordsHeaderOnly(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "report.csv", []byte("ComputerName,IPAddress\n"), 0o644))

	header, rows, err := readCSVRecords(fs, "report.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"ComputerName", "IPAddress"}, header)
	assert.Empty(t, rows)
}

func TestReadCSVRecordsEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "report.csv", []byte(""), 0o644))

	_, _, err := readCSVRecords(fs, "report.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestReadCSVRecordsMissingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, _, err := readCSVRecords(fs, "missing.csv")
	require.Error(t, err)
}

func TestSortRowsBySite(t *testing.T) {
	row := func(site, addr string) *reporter.Record {
		return reporter.NewRecord().Set("Site", site).Set("IPAddress", addr)
	}
	rows := []*reporter.Record{
		row("Oslo", "10.120.26.55"),
		row("Berlin", "10.2.0.9"),
		// numeric address order within a site, lexical would put .10 first
		row("Berlin", "10.2.0.10"),
		row("No Match", "not-an-address"),
		row("Berlin", "10.2.0.2"),
	}

	sortRowsBySite(rows)

	got := make([][2]string, 0, len(rows))
	for _, r := range rows {
		got = append(got, [2]string{r.Get("Site"), r.Get("IPAddress")})
	}
	assert.Equal(t, [][2]string{
		{"Berlin", "10.2.0.2"},
		{"Berlin", "10.2.0.9"},
		{"Berlin", "10.2.0.10"},
		{"No Match", "not-an-address"},
		{"Oslo", "10.120.26.55"},
	}, got)
}

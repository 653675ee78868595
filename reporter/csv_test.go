// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package reporter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostRecord(i int) *Record {
	return NewRecord().
		Set("ComputerName", fmt.Sprintf("host-%03d", i)).
		Set("IPAddress", fmt.Sprintf("10.120.26.%d", i+1)).
		Set("Site", "Berlin HQ")
}

func readCSV(t *testing.T, fs afero.Fs, path string) [][]string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriterSingleFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, err := NewWriter(Options{Fs: fs, Path: "report.csv"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Write(hostRecord(i)))
	}
	require.NoError(t, w.Close())

	assert.Equal(t, []string{"report.csv"}, w.Files())
	assert.Equal(t, 3, w.Total())

	rows := readCSV(t, fs, "report.csv")
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"ComputerName", "IPAddress", "Site"}, rows[0])
	assert.Equal(t, "host-000", rows[1][0])
	assert.Equal(t, "host-002", rows[3][0])
}

func TestWriterCeilingSplitsFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, err := NewWriter(Options{Fs: fs, Path: "report.csv", Ceiling: 2})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Write(hostRecord(i)))
	}
	require.NoError(t, w.Close())

	// 5 records at a ceiling of 2 split into 2+2+1
	require.Equal(t, []string{"report_1.csv", "report_2.csv", "report_3.csv"}, w.Files())

	wantRows := []int{2, 2, 1}
	record := 0
	for i, path := range w.Files() {
		rows := readCSV(t, fs, path)
		require.Len(t, rows, wantRows[i]+1, "file %s", path)
		// every split repeats the header
		assert.Equal(t, []string{"ComputerName", "IPAddress", "Site"}, rows[0])
		for _, row := range rows[1:] {
			assert.Equal(t, fmt.Sprintf("host-%03d", record), row[0])
			record++
		}
	}
	assert.Equal(t, 5, record)
}

func TestWriterCeilingExactMultiple(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, err := NewWriter(Options{Fs: fs, Path: "report.csv", Ceiling: 2})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, w.Write(hostRecord(i)))
	}
	require.NoError(t, w.Close())

	// no empty trailing file
	assert.Equal(t, []string{"report_1.csv", "report_2.csv"}, w.Files())
}

func TestWriterShapeMismatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, err := NewWriter(Options{Fs: fs, Path: "report.csv"})
	require.NoError(t, err)

	require.NoError(t, w.Write(hostRecord(0)))

	err = w.Write(NewRecord().Set("ComputerName", "host-001").Set("Domain", "corp.local"))
	require.Error(t, err)

	var serr *ShapeError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, []string{"ComputerName", "IPAddress", "Site"}, serr.Header)
	assert.Equal(t, []string{"ComputerName", "Domain"}, serr.Fields)
}

func TestWriterAppendSkipsHeaderOnExistingFile(t *testing.T) {
	fs := afero.NewMemMapFs()

	first, err := NewWriter(Options{Fs: fs, Path: "report.csv", Mode: Append})
	require.NoError(t, err)
	require.NoError(t, first.Write(hostRecord(0)))
	require.NoError(t, first.Close())

	second, err := NewWriter(Options{Fs: fs, Path: "report.csv", Mode: Append})
	require.NoError(t, err)
	require.NoError(t, second.Write(hostRecord(1)))
	require.NoError(t, second.Close())

	rows := readCSV(t, fs, "report.csv")
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ComputerName", "IPAddress", "Site"}, rows[0])
	assert.Equal(t, "host-000", rows[1][0])
	assert.Equal(t, "host-001", rows[2][0])
}

func TestWriterOverwriteTruncates(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "report.csv", []byte("old,content\n1,2\n3,4\n"), 0o644))

	w, err := NewWriter(Options{Fs: fs, Path: "report.csv"})
	require.NoError(t, err)
	require.NoError(t, w.Write(hostRecord(0)))
	require.NoError(t, w.Close())

	rows := readCSV(t, fs, "report.csv")
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"ComputerName", "IPAddress", "Site"}, rows[0])
}

func TestWriterRejectsAppendWithCeiling(t *testing.T) {
	_, err := NewWriter(Options{Fs: afero.NewMemMapFs(), Path: "report.csv", Mode: Append, Ceiling: 10})
	assert.Error(t, err)
}

func TestWriterWithoutRecordsCreatesNoFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, err := NewWriter(Options{Fs: fs, Path: "report.csv"})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Empty(t, w.Files())
	_, err = fs.Stat("report.csv")
	assert.Error(t, err)
}

func TestWriterRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, err := NewWriter(Options{Fs: fs, Path: "report.csv"})
	require.NoError(t, err)

	want := [][]string{}
	for i := 0; i < 10; i++ {
		rec := hostRecord(i)
		want = append(want, rec.Values())
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())

	rows := readCSV(t, fs, "report.csv")
	require.Len(t, rows, 11)
	for i, row := range rows[1:] {
		assert.Equal(t, want[i], row)
	}
}

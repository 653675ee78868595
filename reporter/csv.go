// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package reporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
)

// Mode selects how the writer treats existing files.
type Mode int

const (
	// Overwrite truncates existing files
	Overwrite Mode = iota
	// Append adds to existing files and only writes the header into
	// empty ones
	Append
)

// ShapeError reports a record whose field set differs from the file
// header. The report would silently misalign columns, so this is fatal.
type ShapeError struct {
	File   string
	Header []string
	Fields []string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("record shape does not match the header of %s: got [%s], want [%s]",
		e.File, strings.Join(e.Fields, " "), strings.Join(e.Header, " "))
}

// Options configure a Writer.
type Options struct {
	Fs   afero.Fs
	Path string
	Mode Mode
	// Ceiling caps the records per file. Once reached, the writer rolls
	// over to the next numbered file. Zero writes everything into Path.
	Ceiling int
}

// Writer emits records as CSV. The header comes from the first record
// written and is repeated at the top of every split file. Records are
// written in the order they arrive.
type Writer struct {
	fs      afero.Fs
	path    string
	mode    Mode
	ceiling int

	header  []string
	file    afero.File
	csv     *csv.Writer
	inFile  int
	total   int
	fileIdx int
	files   []string
}

func NewWriter(opts Options) (*Writer, error) {
	if opts.Path == "" {
		return nil, errors.New("csv writer requires an output path")
	}
	if opts.Ceiling < 0 {
		return nil, errors.New("record ceiling cannot be negative")
	}
	if opts.Ceiling > 0 && opts.Mode == Append {
		// appending to numbered files would scatter records across
		// partially filled splits
		return nil, errors.New("file splitting cannot be combined with append mode")
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Writer{
		fs:      fs,
		path:    opts.Path,
		mode:    opts.Mode,
		ceiling: opts.Ceiling,
	}, nil
}

// Write appends one record to the report, rolling over to the next file
// when the ceiling is reached.
func (w *Writer) Write(rec *Record) error {
	fields := rec.Fields()
	if w.header == nil {
		if len(fields) == 0 {
			return errors.New("cannot derive a header from a record without fields")
		}
		w.header = fields
	} else if !sameFields(w.header, fields) {
		return &ShapeError{File: w.currentPath(), Header: w.header, Fields: fields}
	}

	if w.file == nil || (w.ceiling > 0 && w.inFile >= w.ceiling) {
		if err := w.roll(); err != nil {
			return err
		}
	}

	if err := w.csv.Write(rec.Values()); err != nil {
		return errors.Wrap(err, "cannot write csv record")
	}
	w.inFile++
	w.total++
	return nil
}

// Close flushes and closes the current file. A writer that never received
// a record creates no files.
func (w *Writer) Close() error {
	return w.closeFile()
}

// Files returns the paths written so far, in order.
func (w *Writer) Files() []string {
	out := make([]string, len(w.files))
	copy(out, w.files)
	return out
}

// Total returns how many records were written across all files.
func (w *Writer) Total() int { return w.total }

func (w *Writer) roll() error {
	if err := w.closeFile(); err != nil {
		return err
	}

	w.fileIdx++
	path := w.currentPath()

	var (
		file        afero.File
		err         error
		needsHeader = true
	)
	switch w.mode {
	case Append:
		file, err = w.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			// only empty files get a header, otherwise we would repeat
			// it in the middle of the data
			if info, serr := file.Stat(); serr == nil && info.Size() > 0 {
				needsHeader = false
			}
		}
	default:
		file, err = w.fs.Create(path)
	}
	if err != nil {
		return errors.Wrapf(err, "cannot open report file %s", path)
	}

	w.file = file
	w.csv = csv.NewWriter(file)
	w.inFile = 0
	w.files = append(w.files, path)

	if needsHeader {
		if err := w.csv.Write(w.header); err != nil {
			return errors.Wrapf(err, "cannot write header to %s", path)
		}
	}
	return nil
}

func (w *Writer) closeFile() error {
	if w.file == nil {
		return nil
	}
	w.csv.Flush()
	flushErr := w.csv.Error()
	closeErr := w.file.Close()
	w.file = nil
	w.csv = nil
	if flushErr != nil {
		return errors.Wrap(flushErr, "cannot flush report file")
	}
	return closeErr
}

// currentPath names the file the writer is about to fill. With a ceiling
// all files carry a numeric suffix, report.csv becomes report_1.csv,
// report_2.csv and so on.
func (w *Writer) currentPath() string {
	if w.ceiling == 0 {
		return w.path
	}
	idx := w.fileIdx
	if idx == 0 {
		idx = 1
	}
	ext := filepath.Ext(w.path)
	return strings.TrimSuffix(w.path, ext) + "_" + strconv.Itoa(idx) + ext
}

func sameFields(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

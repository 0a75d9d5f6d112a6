package benchmark

import (
	"bytes"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/boreq/errors"
)

const DefaultSeparator = '\t'

// RowWriter persists one row per committed run.
type RowWriter interface {
	AppendRow(names, values []string) error
}

// ResultFile is an append-only delimited text file. A header line is written
// whenever the column set of a row differs from the last header in the file.
type ResultFile struct {
	path      string
	separator rune
	header    []string

	// unterminated is set if the file does not end with a line break, for
	// example after an interrupted write.
	unterminated bool
}

// OpenResultFile prepares appending to the file at the given path. If the file
// already exists its last header line is recovered so that it is not repeated
// if the column set did not change. A partial last line is terminated before
// the next row is appended.
func OpenResultFile(path string, separator rune) (*ResultFile, error) {
	f := &ResultFile{
		path:      path,
		separator: separator,
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f, nil
		}
		return nil, errors.Wrap(err, "error reading the result file")
	}

	f.header = ParseLastHeader(string(contents), separator)
	f.unterminated = len(contents) > 0 && !bytes.HasSuffix(contents, []byte("\n"))
	return f, nil
}

// Header returns the last known header or nil if no header was written yet.
func (f *ResultFile) Header() []string {
	return slices.Clone(f.header)
}

func (f *ResultFile) Path() string {
	return f.path
}

// AppendRow appends a data line, preceded by a header line if names differ
// from the last known header. The file is synced before returning.
func (f *ResultFile) AppendRow(names, values []string) error {
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "error opening the result file")
	}
	defer file.Close()

	sep := string(f.separator)

	if f.unterminated {
		if _, err := file.WriteString("\n"); err != nil {
			return errors.Wrap(err, "error terminating the last line")
		}
		f.unterminated = false
	}

	if !slices.Equal(names, f.header) {
		if _, err := file.WriteString(strings.Join(names, sep) + "\n"); err != nil {
			return errors.Wrap(err, "error writing the header")
		}
		f.header = slices.Clone(names)
	}

	if _, err := file.WriteString(strings.Join(values, sep) + "\n"); err != nil {
		return errors.Wrap(err, "error writing the row")
	}

	if err := file.Sync(); err != nil {
		return errors.Wrap(err, "error syncing the result file")
	}

	return file.Close()
}

// ParseLastHeader scans the contents backwards and returns the fields of the
// last line which has more than one field and none of them is an integer.
// Data lines always carry integer durations so they never qualify.
func ParseLastHeader(contents string, separator rune) []string {
	lines := strings.Split(contents, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		fields := strings.Split(strings.TrimSuffix(lines[i], "\r"), string(separator))
		if IsHeader(fields) {
			return fields
		}
	}
	return nil
}

// IsHeader reports whether a line split into fields is a header line. Header
// lines have more than one field and none of the fields is an integer.
func IsHeader(fields []string) bool {
	return len(fields) > 1 && !containsInteger(fields)
}

func containsInteger(fields []string) bool {
	for _, field := range fields {
		if _, err := strconv.ParseInt(field, 10, 64); err == nil {
			return true
		}
	}
	return false
}

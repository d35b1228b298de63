// Package dataset parses uploaded feedback exports into tabular form.
package dataset

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmpty             = errors.New("file contains no rows")
)

// Format is the encoding of an uploaded file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// Table is a parsed file: ordered columns and rows aligned with them.
type Table struct {
	Columns []string
	Rows    [][]string
}

// DetectFormat picks the format from the file extension, falling back to
// sniffing the first bytes of content.
func DetectFormat(name string, head []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".html", ".htm":
		return FormatHTML, nil
	}

	trimmed := bytes.TrimSpace(head)
	switch {
	case len(trimmed) == 0:
		return "", ErrEmpty
	case trimmed[0] == '[':
		return FormatJSON, nil
	case trimmed[0] == '<':
		return FormatHTML, nil
	case bytes.ContainsRune(trimmed, ','):
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// Parse reads the whole file and decodes it according to format.
func Parse(format Format, r io.Reader) (*Table, error) {
	var (
		t   *Table
		err error
	)
	switch format {
	case FormatCSV:
		t, err = ParseCSV(r)
	case FormatJSON:
		t, err = ParseJSON(r)
	case FormatHTML:
		t, err = ParseHTML(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 || len(t.Rows) == 0 {
		return nil, ErrEmpty
	}
	return t, nil
}

// Fingerprint returns the hex sha256 of data. Identical uploads share it.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Record returns row i keyed by column name.
func (t *Table) Record(i int) map[string]string {
	rec := make(map[string]string, len(t.Columns))
	row := t.Rows[i]
	for j, col := range t.Columns {
		if j < len(row) {
			rec[col] = row[j]
		} else {
			rec[col] = ""
		}
	}
	return rec
}

// Column returns the index of name, or -1.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Signature identifies the column layout of the file. Files exported from
// the same source share a signature regardless of row content.
func (t *Table) Signature() string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = strings.ToLower(strings.TrimSpace(c))
	}
	return Fingerprint([]byte(strings.Join(cols, "\x1f")))
}

// normalizeHeader fills blank and repeated column names so every column
// can be addressed by name.
func normalizeHeader(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}
		out[i] = name
	}
	return out
}

// Package csvimport reads spreadsheet exports of requester lists.
package csvimport

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const sniffSize = 4096

// Record is one data line keyed by canonical column name
type Record struct {
	Line   int
	Fields map[string]string
}

// Get returns the value of a column, empty when absent
func (r Record) Get(column string) string {
	return r.Fields[column]
}

// IsEmpty reports whether every field of the record is blank
func (r Record) IsEmpty() bool {
	for _, v := range r.Fields {
		if v != "" {
			return false
		}
	}
	return true
}

// Reader reads records from a CSV file exported by a spreadsheet.
// A UTF-8 BOM is dropped and the delimiter (comma or semicolon) is sniffed from the header line.
type Reader struct {
	csv     *csv.Reader
	columns []string
	line    int
}

// NewReader validates the encoding, reads the header and maps header names
// through aliases to canonical column names. Unknown headers are kept as is.
func NewReader(r io.Reader, aliases map[string]string) (*Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if bytes.HasPrefix(head, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
		head = head[3:]
	}
	if len(bytes.TrimSpace(head)) == 0 {
		return nil, ErrEmptyFile
	}
	if !utf8.Valid(trimPartialRune(head)) {
		return nil, ErrInvalidEncoding
	}

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(head)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		name := normalizeHeader(h)
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}
		columns[i] = name
	}
	return &Reader{csv: cr, columns: columns, line: 1}, nil
}

// Columns returns the canonical column names of the header
func (r *Reader) Columns() []string {
	return r.columns
}

// Has reports whether the header carries a column
func (r *Reader) Has(column string) bool {
	for _, c := range r.columns {
		if c == column {
			return true
		}
	}
	return false
}

// Next returns the next record, or io.EOF
func (r *Reader) Next() (Record, error) {
	fields, err := r.csv.Read()
	if err == io.EOF {
		return Record{}, io.EOF
	}
	r.line++
	if err != nil {
		return Record{}, RowError{Row: r.line, Message: err.Error()}
	}

	rec := Record{Line: r.line, Fields: make(map[string]string, len(r.columns))}
	for i, c := range r.columns {
		if i < len(fields) {
			rec.Fields[c] = strings.TrimSpace(fields[i])
		} else {
			rec.Fields[c] = ""
		}
	}
	return rec, nil
}

// All returns the remaining non-blank records
func (r *Reader) All() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if rec.IsEmpty() {
			continue
		}
		out = append(out, rec)
	}
}

// normalizeHeader lowercases a header and folds spaces and dashes to underscores
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

func sniffDelimiter(head []byte) rune {
	first := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		first = head[:i]
	}
	if bytes.Count(first, []byte{';'}) > bytes.Count(first, []byte{','}) {
		return ';'
	}
	return ','
}

// trimPartialRune drops a multi-byte rune cut by the peek window
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		if utf8.Valid(b) {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}

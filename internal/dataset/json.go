package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ParseJSON reads an array of flat objects. Columns appear in the order
// their keys are first seen; nested values are kept as raw JSON text.
func ParseJSON(r io.Reader) (*Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}

	t := &Table{}
	index := make(map[string]int)
	var records []map[string]string

	for dec.More() {
		if err := expectDelim(dec, '{'); err != nil {
			return nil, fmt.Errorf("record %d: %w", len(records)+1, err)
		}
		rec := make(map[string]string)
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("failed to read JSON key: %w", err)
			}
			key, _ := tok.(string)

			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("failed to read JSON value for %q: %w", key, err)
			}
			if _, ok := index[key]; !ok {
				index[key] = len(t.Columns)
				t.Columns = append(t.Columns, key)
			}
			rec[key] = scalar(raw)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}

	for _, rec := range records {
		row := make([]string, len(t.Columns))
		for col, i := range index {
			row[i] = rec[col]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read JSON: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q in JSON, got %v", ErrUnsupportedFormat, want, tok)
	}
	return nil
}

func scalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return string(raw)
}

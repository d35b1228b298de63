package dataset

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jaki95/feedback-importer/internal/domain"
)

// DefaultSamples is the number of distinct example values kept per column.
const DefaultSamples = 3

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"02/01/2006",
}

// Stats summarises every column.
func (t *Table) Stats(samples int) []domain.ColumnStats {
	if samples <= 0 {
		samples = DefaultSamples
	}
	out := make([]domain.ColumnStats, len(t.Columns))
	for i, col := range t.Columns {
		st := domain.ColumnStats{Name: col, Samples: []string{}}
		seen := make(map[string]struct{})
		numeric, dates := true, true
		for _, row := range t.Rows {
			v := row[i]
			if v == "" {
				continue
			}
			st.NonEmpty++
			if n := utf8.RuneCountInString(v); n > st.MaxLength {
				st.MaxLength = n
			}
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				if len(st.Samples) < samples {
					st.Samples = append(st.Samples, v)
				}
			}
			if numeric {
				_, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
				numeric = err == nil
			}
			if dates {
				dates = LooksLikeTime(v)
			}
		}
		st.Distinct = len(seen)
		st.LooksNumeric = st.NonEmpty > 0 && numeric
		st.LooksDateTime = st.NonEmpty > 0 && dates && !st.LooksNumeric
		out[i] = st
	}
	return out
}

// LooksLikeTime reports whether v parses with a common timestamp layout.
func LooksLikeTime(v string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

// Preview returns the first n rows with column statistics.
func (t *Table) Preview(n int) *domain.DataPreview {
	if n > len(t.Rows) || n <= 0 {
		n = len(t.Rows)
	}
	rows := make([]map[string]string, n)
	for i := range rows {
		rows[i] = t.Record(i)
	}
	return &domain.DataPreview{
		Columns:   append([]string(nil), t.Columns...),
		Rows:      rows,
		TotalRows: len(t.Rows),
		Stats:     t.Stats(DefaultSamples),
	}
}

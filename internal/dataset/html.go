package dataset

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseHTML reads the first <table> of an HTML export. The header comes from
// <th> cells when present, otherwise from the first row.
func ParseHTML(r io.Reader) (*Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: no table found in HTML", ErrUnsupportedFormat)
	}

	var header []string
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if th := tr.Find("th"); th.Length() > 0 && header == nil {
			th.Each(func(_ int, s *goquery.Selection) {
				header = append(header, cellText(s))
			})
			return
		}
		var row []string
		tr.Find("td").Each(func(_ int, s *goquery.Selection) {
			row = append(row, cellText(s))
		})
		if len(row) > 0 && !blank(row) {
			rows = append(rows, row)
		}
	})

	if header == nil {
		if len(rows) == 0 {
			return nil, ErrEmpty
		}
		header, rows = rows[0], rows[1:]
	}

	t := &Table{Columns: normalizeHeader(header)}
	for _, cells := range rows {
		row := make([]string, len(t.Columns))
		copy(row, cells)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

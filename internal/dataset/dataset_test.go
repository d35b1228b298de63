package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		head string
		want Format
		err  error
	}{
		{"weibo.csv", "", FormatCSV, nil},
		{"export.JSON", "", FormatJSON, nil},
		{"report.htm", "", FormatHTML, nil},
		{"upload", `  [{"a":1}]`, FormatJSON, nil},
		{"upload", "<html><table>", FormatHTML, nil},
		{"upload", "id,text\n1,hi", FormatCSV, nil},
		{"upload", "   ", "", ErrEmpty},
		{"upload.bin", "\x00\x01", "", ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.head, func(t *testing.T) {
			got, err := DetectFormat(tt.name, []byte(tt.head))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCSV(t *testing.T) {
	input := "\ufeffid,text,,text\n1, great app ,x\n\n2,\"crashes, often\",y,z,extra\n"

	table, err := Parse(FormatCSV, strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "text", "column_3", "text_2"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"1", "great app", "x", ""}, table.Rows[0])
	assert.Equal(t, []string{"2", "crashes, often", "y", "z"}, table.Rows[1])
	assert.Equal(t, map[string]string{"id": "2", "text": "crashes, often", "column_3": "y", "text_2": "z"}, table.Record(1))
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(FormatCSV, strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Parse(FormatCSV, strings.NewReader("id,text\n"))
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Parse(FormatJSON, strings.NewReader("[]"))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestParseJSONKeepsKeyOrder(t *testing.T) {
	input := `[
		{"text": "love it", "user": {"name": "amy"}, "likes": 12},
		{"likes": 3, "text": "meh", "lang": "en", "deleted": null}
	]`

	table, err := Parse(FormatJSON, strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"text", "user", "likes", "lang", "deleted"}, table.Columns)
	assert.Equal(t, []string{"love it", `{"name": "amy"}`, "12", "", ""}, table.Rows[0])
	assert.Equal(t, []string{"meh", "", "3", "en", ""}, table.Rows[1])
}

func TestParseJSONRejectsObjects(t *testing.T) {
	_, err := Parse(FormatJSON, strings.NewReader(`{"text": "hi"}`))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseHTML(t *testing.T) {
	input := `<html><body>
	<p>Exported feedback</p>
	<table>
	  <thead><tr><th>Author</th><th>Comment</th></tr></thead>
	  <tbody>
	    <tr><td>amy</td><td>  fast
	        delivery </td></tr>
	    <tr><td>bo</td></tr>
	  </tbody>
	</table>
	<table><tr><td>ignored</td></tr></table>
	</body></html>`

	table, err := Parse(FormatHTML, strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"Author", "Comment"}, table.Columns)
	assert.Equal(t, [][]string{{"amy", "fast delivery"}, {"bo", ""}}, table.Rows)
}

func TestParseHTMLWithoutHeaderCells(t *testing.T) {
	input := `<table><tr><td>id</td><td>text</td></tr><tr><td>1</td><td>ok</td></tr></table>`

	table, err := Parse(FormatHTML, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "text"}, table.Columns)
	assert.Equal(t, [][]string{{"1", "ok"}}, table.Rows)
}

func TestParseHTMLWithoutTable(t *testing.T) {
	_, err := Parse(FormatHTML, strings.NewReader("<p>nothing</p>"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestStats(t *testing.T) {
	table := &Table{
		Columns: []string{"text", "stars", "posted"},
		Rows: [][]string{
			{"good", "5", "2024-03-01"},
			{"good", "4", "2024-03-02 10:00"},
			{"", "1,000", ""},
			{"bad", "3", "2024-03-03T08:00:00Z"},
		},
	}

	stats := table.Stats(2)
	require.Len(t, stats, 3)

	assert.Equal(t, 3, stats[0].NonEmpty)
	assert.Equal(t, 2, stats[0].Distinct)
	assert.Equal(t, []string{"good", "bad"}, stats[0].Samples)
	assert.False(t, stats[0].LooksNumeric)

	assert.True(t, stats[1].LooksNumeric)
	assert.Equal(t, 5, stats[1].MaxLength)

	assert.True(t, stats[2].LooksDateTime)
	assert.Equal(t, 3, stats[2].NonEmpty)
}

func TestPreview(t *testing.T) {
	table := &Table{Columns: []string{"a"}, Rows: [][]string{{"1"}, {"2"}, {"3"}}}

	p := table.Preview(2)
	assert.Equal(t, 3, p.TotalRows)
	assert.Equal(t, []map[string]string{{"a": "1"}, {"a": "2"}}, p.Rows)
	assert.Len(t, p.Stats, 1)

	assert.Len(t, table.Preview(10).Rows, 3)
}

func TestFingerprintAndSignature(t *testing.T) {
	assert.Equal(t, Fingerprint([]byte("a,b\n1,2")), Fingerprint([]byte("a,b\n1,2")))
	assert.NotEqual(t, Fingerprint([]byte("a,b\n1,2")), Fingerprint([]byte("a,b\n1,3")))

	a := &Table{Columns: []string{"ID", " Text"}}
	b := &Table{Columns: []string{"id", "text"}, Rows: [][]string{{"1", "x"}}}
	c := &Table{Columns: []string{"text", "id"}}
	assert.Equal(t, a.Signature(), b.Signature())
	assert.NotEqual(t, a.Signature(), c.Signature())
}

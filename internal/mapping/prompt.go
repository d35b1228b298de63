// Package mapping proposes how the columns of an uploaded file map onto
// feedback record fields.
package mapping

import (
	"fmt"
	"strings"

	"github.com/jaki95/feedback-importer/internal/domain"
)

// SystemPrompt frames the column mapping task for a language model.
const SystemPrompt = `You map the columns of a customer feedback export onto a fixed record schema.
Respond with JSON only: {"mappings":[{"column":"<column>","target":"<field>","confidence":<0..1>}]}.
Every column must appear exactly once. Use "ignore" for columns that carry no feedback data.
Exactly one column should map to "content".`

var fieldHints = map[string]string{
	domain.FieldContent:     "the feedback text written by the customer",
	domain.FieldAuthor:      "name or handle of the person who wrote it",
	domain.FieldPlatform:    "channel or site the feedback came from",
	domain.FieldPublishedAt: "when the feedback was posted",
	domain.FieldRating:      "numeric score or star rating",
	domain.FieldTitle:       "headline or subject line",
	domain.FieldURL:         "link to the original post",
	domain.FieldTags:        "labels or categories",
	domain.FieldIgnore:      "not imported",
}

// BuildPrompt renders the mapping prompt for the given columns. Dedup columns
// are called out because their values identify a record across imports.
func BuildPrompt(source string, stats []domain.ColumnStats, dedupColumns []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Source: %s\n\n", orUnknown(source))

	b.WriteString("Target fields:\n")
	for _, f := range domain.TargetFields {
		fmt.Fprintf(&b, "- %s: %s\n", f, fieldHints[f])
	}

	b.WriteString("\nColumns:\n")
	for _, st := range stats {
		fmt.Fprintf(&b, "- %s (%d non-empty, %d distinct", st.Name, st.NonEmpty, st.Distinct)
		switch {
		case st.LooksNumeric:
			b.WriteString(", numeric")
		case st.LooksDateTime:
			b.WriteString(", timestamp")
		}
		b.WriteString(")")
		if len(st.Samples) > 0 {
			fmt.Fprintf(&b, ": %s", quoteAll(st.Samples))
		}
		b.WriteString("\n")
	}

	if len(dedupColumns) > 0 {
		fmt.Fprintf(&b, "\nDeduplicate records on: %s\n", strings.Join(dedupColumns, ", "))
	}
	return b.String()
}

func quoteAll(values []string) string {
	out := make([]string, len(values))
	for i, v := range values {
		if len(v) > 80 {
			v = v[:77] + "..."
		}
		out[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(out, ", ")
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

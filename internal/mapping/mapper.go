package mapping

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jaki95/feedback-importer/internal/domain"
)

var (
	ErrNoColumns  = errors.New("no columns to map")
	ErrNoContent  = errors.New("mapping has no content column")
	ErrBadTarget  = errors.New("unknown target field")
	ErrBadColumns = errors.New("mapping does not match the file columns")
)

// Mapper suggests a target field for every column of a file.
type Mapper interface {
	Suggest(ctx context.Context, prompt string, stats []domain.ColumnStats) ([]domain.ColumnMapping, error)
}

type keyword struct {
	target string
	words  []string
}

// Checked in order; the first field whose keyword appears in the column name wins.
var keywords = []keyword{
	{domain.FieldURL, []string{"url", "link", "href", "permalink"}},
	{domain.FieldPublishedAt, []string{"published", "posted", "created", "date", "time", "timestamp"}},
	{domain.FieldRating, []string{"rating", "stars", "score", "rank"}},
	{domain.FieldAuthor, []string{"author", "user", "nickname", "name", "handle", "reviewer"}},
	{domain.FieldPlatform, []string{"platform", "channel", "source", "site", "app"}},
	{domain.FieldTitle, []string{"title", "subject", "headline"}},
	{domain.FieldTags, []string{"tag", "label", "category", "topic"}},
	{domain.FieldContent, []string{"content", "text", "comment", "review", "body", "message", "feedback"}},
	{domain.FieldIgnore, []string{"id", "uuid", "likes", "reposts", "count"}},
}

// KeywordMapper maps columns by name keywords and the shape of their
// values. It stands in for a language model and ignores the prompt.
type KeywordMapper struct{}

func (KeywordMapper) Suggest(ctx context.Context, prompt string, stats []domain.ColumnStats) ([]domain.ColumnMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return nil, ErrNoColumns
	}

	out := make([]domain.ColumnMapping, len(stats))
	for i, st := range stats {
		target, confidence := guess(st)
		out[i] = domain.ColumnMapping{
			Column:     st.Name,
			Target:     target,
			Confidence: confidence,
			Samples:    st.Samples,
		}
	}
	ensureContent(out, stats)
	return out, nil
}

func guess(st domain.ColumnStats) (string, float64) {
	name := strings.ToLower(st.Name)
	for _, kw := range keywords {
		for _, w := range kw.words {
			if name == w {
				return kw.target, 0.95
			}
		}
	}
	for _, kw := range keywords {
		for _, w := range kw.words {
			if strings.Contains(name, w) {
				return kw.target, 0.8
			}
		}
	}

	switch {
	case st.LooksDateTime:
		return domain.FieldPublishedAt, 0.6
	case allURLs(st.Samples):
		return domain.FieldURL, 0.6
	case st.LooksNumeric:
		return domain.FieldIgnore, 0.4
	}
	return domain.FieldIgnore, 0.3
}

func allURLs(samples []string) bool {
	if len(samples) == 0 {
		return false
	}
	for _, s := range samples {
		if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
			return false
		}
	}
	return true
}

// ensureContent promotes the longest free-text column to content when no
// column was mapped there by name.
func ensureContent(out []domain.ColumnMapping, stats []domain.ColumnStats) {
	best := -1
	for i, m := range out {
		if m.Target == domain.FieldContent {
			return
		}
		if m.Target != domain.FieldIgnore || stats[i].LooksNumeric || stats[i].LooksDateTime {
			continue
		}
		if best < 0 || stats[i].MaxLength > stats[best].MaxLength {
			best = i
		}
	}
	if best >= 0 {
		out[best].Target = domain.FieldContent
		out[best].Confidence = 0.5
	}
}

// Validate checks confirmed targets against the file columns. Every target
// must be a known field and exactly one column must hold the content.
func Validate(columns []string, targets map[string]string) error {
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}

	content := 0
	for col, target := range targets {
		if !known[col] {
			return fmt.Errorf("%w: unknown column %q", ErrBadColumns, col)
		}
		if !domain.IsTargetField(target) {
			return fmt.Errorf("%w: %q for column %q", ErrBadTarget, target, col)
		}
		if target == domain.FieldContent {
			content++
		}
	}
	if content != 1 {
		return fmt.Errorf("%w: %d columns map to content", ErrNoContent, content)
	}
	return nil
}

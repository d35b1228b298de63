package domain

// ColumnStats summarises one column of an uploaded file.
type ColumnStats struct {
	Name          string   `json:"name"`
	NonEmpty      int      `json:"non_empty"`
	Distinct      int      `json:"distinct"`
	Samples       []string `json:"samples"`
	MaxLength     int      `json:"max_length"`
	LooksNumeric  bool     `json:"looks_numeric,omitempty"`
	LooksDateTime bool     `json:"looks_datetime,omitempty"`
}

// DataPreview is the payload of GET /{batch}/data-preview.
type DataPreview struct {
	Columns   []string            `json:"columns"`
	Rows      []map[string]string `json:"rows"`
	TotalRows int                 `json:"total_rows"`
	Stats     []ColumnStats       `json:"stats"`
}

// Prompt provenance.
const (
	PromptSourceGenerated = "generated"
	PromptSourceTemplate  = "template"
)

// PromptPreview is the payload of POST /{batch}/build-prompt and GET /{batch}/prompt-text.
type PromptPreview struct {
	PromptText   string `json:"prompt_text"`
	Source       string `json:"source"`
	TemplateName string `json:"template_name,omitempty"`
	CacheHit     bool   `json:"cache_hit"`
}

// ColumnMapping is the suggested target for one source column.
type ColumnMapping struct {
	Column     string   `json:"column"`
	Target     string   `json:"target"`
	Confidence float64  `json:"confidence"`
	Samples    []string `json:"samples,omitempty"`
}

// MappingPreview is the payload of GET /{batch}/mapping-preview.
type MappingPreview struct {
	Mappings     []ColumnMapping `json:"mappings"`
	DedupColumns []string        `json:"dedup_columns,omitempty"`
}

// Targets returns the suggested target per column.
func (m *MappingPreview) Targets() map[string]string {
	out := make(map[string]string, len(m.Mappings))
	for _, cm := range m.Mappings {
		out[cm.Column] = cm.Target
	}
	return out
}

// ResultPreview is the payload of GET /{batch}/result-preview.
type ResultPreview struct {
	Records  []map[string]string `json:"records"`
	Progress Progress            `json:"progress"`
}

// Target fields of a feedback record.
const (
	FieldContent     = "content"
	FieldAuthor      = "author"
	FieldPlatform    = "platform"
	FieldPublishedAt = "published_at"
	FieldRating      = "rating"
	FieldTitle       = "title"
	FieldURL         = "url"
	FieldTags        = "tags"
	FieldIgnore      = "ignore"
)

// TargetFields lists every valid mapping target.
var TargetFields = []string{
	FieldContent, FieldAuthor, FieldPlatform, FieldPublishedAt,
	FieldRating, FieldTitle, FieldURL, FieldTags, FieldIgnore,
}

// IsTargetField reports whether name is a valid mapping target.
func IsTargetField(name string) bool {
	for _, f := range TargetFields {
		if f == name {
			return true
		}
	}
	return false
}

package job

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jaki95/feedback-importer/internal/domain"
	"github.com/jaki95/feedback-importer/internal/mapping"
)

// DataPreview returns the first rows of the uploaded file with column statistics
func (m *Manager) DataPreview(ctx context.Context, id string) (*domain.DataPreview, error) {
	m.mu.RLock()
	b, err := m.get(id)
	if err != nil {
		m.mu.RUnlock()
		return nil, err
	}
	cp := *b
	m.mu.RUnlock()

	table, err := m.table(ctx, &cp)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch file: %w", err)
	}
	return table.Preview(m.opts.PreviewRows), nil
}

// BuildPrompt renders the mapping prompt of a pending batch. When a confirmed
// template exists for the same column layout the batch goes straight to the
// mapping stage and the response reports a cache hit.
func (m *Manager) BuildPrompt(ctx context.Context, id string, dedupColumns []string) (*domain.PromptPreview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.BatchPending && b.Status != domain.BatchPromptReady {
		return nil, fmt.Errorf("%w: prompt cannot be built in status %s", ErrInvalidState, b.Status)
	}
	for _, col := range dedupColumns {
		if b.table.Column(col) < 0 {
			return nil, fmt.Errorf("%w: unknown dedup column %q", ErrInvalidRequest, col)
		}
	}
	b.dedupColumns = append([]string(nil), dedupColumns...)
	stats := b.table.Stats(0)

	if tpl, ok := m.templates[b.signature]; ok && b.Status == domain.BatchPending {
		if err := m.transition(b, domain.BatchMapping); err != nil {
			return nil, err
		}
		b.mappings = fromTemplate(tpl, stats)
		if len(b.dedupColumns) == 0 {
			b.dedupColumns = append([]string(nil), tpl.DedupColumns...)
		}
		b.prompt = domain.PromptPreview{
			PromptText:   tpl.Prompt,
			Source:       domain.PromptSourceTemplate,
			TemplateName: tpl.Name,
			CacheHit:     true,
		}
		slog.Info("Mapping template reused", "batchId", id, "template", tpl.Name)
		p := b.prompt
		return &p, nil
	}

	if err := m.transition(b, domain.BatchPromptReady); err != nil {
		return nil, err
	}
	b.prompt = domain.PromptPreview{
		PromptText: mapping.BuildPrompt(b.Source, stats, b.dedupColumns),
		Source:     domain.PromptSourceGenerated,
	}
	p := b.prompt
	return &p, nil
}

// UpdatePrompt replaces the prompt text while the batch waits for the user
func (m *Manager) UpdatePrompt(id, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.get(id)
	if err != nil {
		return "", err
	}
	if b.Status != domain.BatchPromptReady {
		return "", fmt.Errorf("%w: prompt cannot be edited in status %s", ErrInvalidState, b.Status)
	}
	b.prompt.PromptText = text
	b.prompt.Source = domain.PromptSourceGenerated
	return text, nil
}

// PromptText returns the current prompt
func (m *Manager) PromptText(id string) (*domain.PromptPreview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if b.prompt.PromptText == "" {
		return nil, fmt.Errorf("%w: no prompt built yet", ErrInvalidState)
	}
	p := b.prompt
	return &p, nil
}

// GenerateMapping starts the mapping suggestion in the background
func (m *Manager) GenerateMapping(ctx context.Context, id string, dedupColumns []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.get(id)
	if err != nil {
		return err
	}
	if dedupColumns != nil {
		b.dedupColumns = append([]string(nil), dedupColumns...)
	}
	if err := m.transition(b, domain.BatchGeneratingMapping); err != nil {
		return err
	}

	prompt := b.prompt.PromptText
	stats := b.table.Stats(0)
	m.background(b, func(ctx context.Context) {
		m.generateMapping(ctx, id, prompt, stats)
	})
	return nil
}

func (m *Manager) generateMapping(ctx context.Context, id, prompt string, stats []domain.ColumnStats) {
	var suggestion []domain.ColumnMapping
	err := sleep(ctx, m.opts.MappingDelay)
	if err == nil {
		suggestion, err = m.mapper.Suggest(ctx, prompt, stats)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok || b.Status != domain.BatchGeneratingMapping {
		return
	}
	if err != nil {
		slog.Error("Mapping generation failed", "batchId", id, "error", err)
		b.finish(domain.BatchFailed, fmt.Sprintf("Mapping generation failed: %v", err))
		return
	}
	b.mappings = suggestion
	if err := m.transition(b, domain.BatchMapping); err != nil {
		slog.Error("Mapping generation finished out of order", "batchId", id, "error", err)
		return
	}
	slog.Info("Mapping ready", "batchId", id, "columns", len(suggestion))
}

// MappingPreview returns the suggested mapping
func (m *Manager) MappingPreview(id string) (*domain.MappingPreview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if b.mappings == nil {
		return nil, fmt.Errorf("%w: mapping is not ready in status %s", ErrInvalidState, b.Status)
	}
	return &domain.MappingPreview{
		Mappings:     append([]domain.ColumnMapping(nil), b.mappings...),
		DedupColumns: append([]string(nil), b.dedupColumns...),
	}, nil
}

// ConfirmMapping records the approved targets, remembers them as a template
// for the column layout and starts the import in the background.
func (m *Manager) ConfirmMapping(ctx context.Context, id string, req domain.ConfirmMappingRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.get(id)
	if err != nil {
		return err
	}
	if b.Status != domain.BatchMapping {
		return fmt.Errorf("%w: mapping cannot be confirmed in status %s", ErrInvalidState, b.Status)
	}

	targets := make(map[string]string, len(req.ConfirmedMappings))
	for col, sel := range req.ConfirmedMappings {
		targets[col] = sel.Target
	}
	if err := mapping.Validate(b.table.Columns, targets); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := m.transition(b, domain.BatchImporting); err != nil {
		return err
	}
	b.confirmed = targets
	b.Progress = domain.Progress{Total: len(b.table.Rows)}

	name := fmt.Sprintf("%s-%s", orDefault(b.Source, "upload"), b.signature[:8])
	m.templates[b.signature] = Template{
		Name:         name,
		Prompt:       b.prompt.PromptText,
		Targets:      targets,
		DedupColumns: append([]string(nil), b.dedupColumns...),
	}
	slog.Info("Mapping confirmed", "batchId", id, "template", name)

	m.background(b, func(ctx context.Context) {
		m.runImport(ctx, id)
	})
	return nil
}

// ResultPreview returns a sample of the imported records
func (m *Manager) ResultPreview(id string) (*domain.ResultPreview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if !b.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: import has not finished", ErrInvalidState)
	}
	n := min(len(b.records), ResultPreviewRows)
	records := make([]map[string]string, n)
	copy(records, b.records[:n])
	return &domain.ResultPreview{Records: records, Progress: b.Progress}, nil
}

// ProcessPipeline starts semantic processing of an imported batch
func (m *Manager) ProcessPipeline(ctx context.Context, id string) (*domain.PipelineResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.BatchCompleted && b.Status != domain.BatchPartiallyCompleted {
		return nil, fmt.Errorf("%w: batch status %s cannot be processed", ErrInvalidState, b.Status)
	}
	if b.Pipeline == domain.PipelineProcessing {
		return nil, fmt.Errorf("%w: pipeline already running", ErrInvalidState)
	}

	b.Pipeline = domain.PipelineProcessing
	m.background(b, func(ctx context.Context) {
		err := sleep(ctx, m.opts.ImportDelay)

		m.mu.Lock()
		defer m.mu.Unlock()
		if err != nil {
			b.Pipeline = domain.PipelineFailed
			return
		}
		b.Pipeline = domain.PipelineDone
		slog.Info("Pipeline finished", "batchId", id, "records", len(b.records))
	})
	return &domain.PipelineResult{BatchID: id, PipelineStatus: b.Pipeline}, nil
}

func fromTemplate(tpl Template, stats []domain.ColumnStats) []domain.ColumnMapping {
	out := make([]domain.ColumnMapping, len(stats))
	for i, st := range stats {
		target, ok := tpl.Targets[st.Name]
		if !ok {
			target = domain.FieldIgnore
		}
		out[i] = domain.ColumnMapping{Column: st.Name, Target: target, Confidence: 1, Samples: st.Samples}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

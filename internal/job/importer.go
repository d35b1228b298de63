package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jaki95/feedback-importer/internal/dataset"
	"github.com/jaki95/feedback-importer/internal/domain"
)

var errNoContent = errors.New("row has no content")

type rowResult struct {
	record map[string]string
	key    string
	err    error
}

// runImport converts every row of the batch into a feedback record and
// stores the ones whose dedup key has not been seen before.
func (m *Manager) runImport(ctx context.Context, id string) {
	if err := sleep(ctx, m.opts.ImportDelay); err != nil {
		return
	}

	m.mu.RLock()
	b, ok := m.batches[id]
	if !ok || b.Status != domain.BatchImporting {
		m.mu.RUnlock()
		return
	}
	table := b.table
	targets := b.confirmed
	dedup := b.dedupColumns
	source := b.Source
	m.mu.RUnlock()

	results, err := convertRows(ctx, table, targets, dedup, source, m.opts.Workers)

	m.mu.Lock()
	defer m.mu.Unlock()
	if b.Status != domain.BatchImporting {
		return
	}
	if err != nil {
		slog.Error("Import failed", "batchId", id, "error", err)
		b.finish(domain.BatchFailed, fmt.Sprintf("Import failed: %v", err))
		return
	}

	for _, r := range results {
		switch {
		case r.err != nil:
			b.Progress.Failed++
		case m.records.Add(r.key, id):
			b.Progress.New++
			b.records = append(b.records, r.record)
		default:
			b.Progress.Duplicate++
		}
	}

	switch p := b.Progress; {
	case p.Total > 0 && p.Failed == p.Total:
		b.finish(domain.BatchFailed, "No rows could be imported: every row is missing content.")
	case p.Failed > 0:
		b.finish(domain.BatchPartiallyCompleted, fmt.Sprintf("%d rows had no content and were skipped.", p.Failed))
	default:
		b.finish(domain.BatchCompleted, "")
	}
	// The raw file stays in storage; drop the parsed copy.
	b.table = nil
	slog.Info("Import finished", "batchId", id, "status", b.Status,
		"new", b.Progress.New, "duplicate", b.Progress.Duplicate, "failed", b.Progress.Failed)
}

// convertRows maps rows concurrently, one chunk per worker. Results keep
// row order so duplicates within a file resolve to the first occurrence.
func convertRows(ctx context.Context, table *dataset.Table, targets map[string]string, dedup []string, source string, workers int) ([]rowResult, error) {
	results := make([]rowResult, len(table.Rows))
	if len(results) == 0 {
		return results, nil
	}

	columns := targetColumns(table, targets)
	dedupIdx := make([]int, 0, len(dedup))
	for _, col := range dedup {
		if i := table.Column(col); i >= 0 {
			dedupIdx = append(dedupIdx, i)
		}
	}

	chunk := (len(results) + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(results); start += chunk {
		end := min(start+chunk, len(results))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = convertRow(table.Rows[i], columns, dedupIdx, source)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

type targetColumn struct {
	index  int
	target string
}

func targetColumns(table *dataset.Table, targets map[string]string) []targetColumn {
	var out []targetColumn
	for i, col := range table.Columns {
		if t, ok := targets[col]; ok && t != domain.FieldIgnore {
			out = append(out, targetColumn{index: i, target: t})
		}
	}
	return out
}

func convertRow(row []string, columns []targetColumn, dedupIdx []int, source string) rowResult {
	record := make(map[string]string, len(columns)+1)
	var tags []string
	for _, c := range columns {
		v := row[c.index]
		if v == "" {
			continue
		}
		switch c.target {
		case domain.FieldTags:
			tags = append(tags, v)
		default:
			if prev, ok := record[c.target]; ok {
				v = prev + " " + v
			}
			record[c.target] = v
		}
	}
	if len(tags) > 0 {
		sort.Strings(tags)
		record[domain.FieldTags] = strings.Join(tags, ",")
	}
	if record[domain.FieldContent] == "" {
		return rowResult{err: errNoContent}
	}
	if _, ok := record[domain.FieldPlatform]; !ok && source != "" {
		record[domain.FieldPlatform] = source
	}

	var values []string
	if len(dedupIdx) > 0 {
		for _, i := range dedupIdx {
			values = append(values, row[i])
		}
	} else {
		keys := make([]string, 0, len(record))
		for k := range record {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			values = append(values, k+"="+record[k])
		}
	}
	return rowResult{record: record, key: DedupKey(source, values)}
}

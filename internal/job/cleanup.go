package job

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jaki95/feedback-importer/internal/domain"
)

// PurgeFiles deletes the stored uploads of batches that finished before
// cutoff, along with stored files that belong to no known batch. It returns
// the number of files removed.
func (m *Manager) PurgeFiles(ctx context.Context, cutoff time.Time) (int, error) {
	keys, err := m.store.List(ctx, "batches/")
	if err != nil {
		return 0, fmt.Errorf("failed to list stored files: %w", err)
	}

	var expired []string
	m.mu.Lock()
	for _, key := range keys {
		id, _, _ := strings.Cut(strings.TrimPrefix(key, "batches/"), "/")
		b, ok := m.batches[id]
		switch {
		case !ok:
			expired = append(expired, key)
		case b.Status.IsTerminal() && b.Pipeline != domain.PipelineProcessing && b.EndTime != nil && b.EndTime.Before(cutoff):
			expired = append(expired, key)
			b.storageKey = ""
		}
	}
	m.mu.Unlock()

	removed := 0
	for _, key := range expired {
		if err := m.store.Delete(ctx, key); err != nil {
			slog.Error("Failed to remove stored file", "key", key, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Cleanup completed", "files_removed", removed)
	}
	return removed, nil
}

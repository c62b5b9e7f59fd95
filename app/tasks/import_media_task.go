package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/lysyi3m/watchlist/app/watchlist"
)

// ImportMediaTask adds one catalog id to the watchlist. Ids the catalog does
// not know are skipped rather than retried.
type ImportMediaTask struct {
	Task
	MediaID  int64
	importer MediaImporter
}

func NewImportMediaTask(id int64, importer MediaImporter) *ImportMediaTask {
	return &ImportMediaTask{
		Task:     NewTask(TaskTypeImportMedia, "media:"+strconv.FormatInt(id, 10)),
		MediaID:  id,
		importer: importer,
	}
}

func (t *ImportMediaTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	record, err := t.importer.Import(ctx, t.MediaID)
	if watchlist.IsKind(err, watchlist.KindNotFound) || watchlist.IsKind(err, watchlist.KindBadRequest) {
		slog.Warn("Skipping seed media", "id", t.MediaID, "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to import media %d: %w", t.MediaID, err)
	}

	slog.Info("Seed media imported", "id", record.ID, "title", record.Title, "duration", t.GetDuration().String())
	return nil
}

package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

// Archiver implements domain.SwapArchiver by serializing terminal swap
// snapshots to JSON and uploading them to cold storage. Deletion from the
// live registry is the sweeper's job; the archiver only writes.
type Archiver struct {
	writer domain.BlobWriter
	logger *slog.Logger
}

// NewArchiver creates an Archiver over the given blob writer.
func NewArchiver(writer domain.BlobWriter, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		logger: logger.With(slog.String("component", "swap_archiver")),
	}
}

// ArchiveSwaps uploads one object per swap, keyed by creation date and id:
//
//	swaps/2026/09/01/5f3a....json
//
// A failed upload aborts the batch; the sweeper retries nothing, so partial
// batches are acceptable and re-archiving an id overwrites the same key.
func (a *Archiver) ArchiveSwaps(ctx context.Context, swaps []domain.SwapState) error {
	for _, state := range swaps {
		payload, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return fmt.Errorf("s3blob: marshal swap %s: %w", state.ID, err)
		}

		key := archiveKey(state)
		if err := a.writer.Put(ctx, key, bytes.NewReader(payload), "application/json"); err != nil {
			return fmt.Errorf("s3blob: archive swap %s: %w", state.ID, err)
		}

		a.logger.DebugContext(ctx, "swap archived",
			slog.String("swap_id", state.ID),
			slog.String("key", key),
			slog.String("status", string(state.Status)),
		)
	}
	return nil
}

// archiveKey partitions the archive by the swap's creation date.
func archiveKey(state domain.SwapState) string {
	return fmt.Sprintf("swaps/%s/%s.json", state.CreatedAt.UTC().Format("2006/01/02"), state.ID)
}

// Compile-time interface check.
var _ domain.SwapArchiver = (*Archiver)(nil)

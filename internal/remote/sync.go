package remote

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zombor/docscan/internal/document"
)

// Syncer moves documents between the local store and a scan store. Local
// documents are never overwritten or removed by a pull.
type Syncer struct {
	remote ScanStore
	local  *document.Store
}

// NewSyncer creates a Syncer
func NewSyncer(remote ScanStore, local *document.Store) *Syncer {
	return &Syncer{remote: remote, local: local}
}

// Upload sends one document
func (s *Syncer) Upload(ctx context.Context, doc *document.Document) error {
	if err := s.remote.UploadScan(ctx, doc); err != nil {
		return fmt.Errorf("uploading %s: %w", doc.ID, err)
	}
	return nil
}

// Push uploads docs and returns how many were sent. It stops at the first
// failure; earlier uploads stay in place.
func (s *Syncer) Push(ctx context.Context, docs []*document.Document) (int, error) {
	for i, doc := range docs {
		if err := s.Upload(ctx, doc); err != nil {
			return i, err
		}
	}
	slog.Info("Pushed documents", "count", len(docs))
	return len(docs), nil
}

// Pull fetches the remote documents and adds those missing locally
func (s *Syncer) Pull(ctx context.Context) (int, error) {
	docs, err := s.remote.FetchScans(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching scans: %w", err)
	}
	added := s.local.Merge(docs)
	slog.Info("Pulled documents", "fetched", len(docs), "added", added)
	return added, nil
}

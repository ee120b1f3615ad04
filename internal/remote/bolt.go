package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/zombor/docscan/internal/document"
)

const scansBucket = "scans"

// BoltStore keeps records in BoltDB and their images in a Storage. It
// serves as the scan store on the host side of the HTTP API.
type BoltStore struct {
	db      *bbolt.DB
	storage Storage
}

// NewBoltStore opens the database at path
func NewBoltStore(path string, storage Storage) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(scansBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db, storage: storage}, nil
}

// PutRecord stores rec under a new record id and returns the stored record
func (b *BoltStore) PutRecord(_ context.Context, rec Record) (Record, error) {
	rec.RecordID = uuid.NewString()
	rec.ImageFile = ""
	if len(rec.Image) > 0 {
		name, err := b.storage.Save(rec.RecordID+".img", rec.Image)
		if err != nil {
			return Record{}, fmt.Errorf("%w: saving image: %w", ErrRemoteOperationFailed, err)
		}
		rec.ImageFile = name
	}

	stored := rec
	stored.Image = nil
	data, err := json.Marshal(stored)
	if err != nil {
		return Record{}, fmt.Errorf("marshaling record: %w", err)
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(scansBucket)).Put([]byte(rec.RecordID), data)
	})
	if err != nil {
		if rec.ImageFile != "" {
			b.storage.Delete(rec.ImageFile)
		}
		return Record{}, fmt.Errorf("%w: saving record: %w", ErrRemoteOperationFailed, err)
	}
	return rec, nil
}

// Records returns every record with its image, oldest first. Records whose
// image is missing are returned without one.
func (b *BoltStore) Records(_ context.Context) ([]Record, error) {
	records := make([]Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(scansBucket)).ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshaling record: %w", err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing records: %w", ErrRemoteOperationFailed, err)
	}
	slices.SortStableFunc(records, func(a, b Record) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	for i := range records {
		if records[i].ImageFile == "" {
			continue
		}
		data, err := b.storage.Get(records[i].ImageFile)
		if err != nil {
			slog.Warn("Failed to read record image", "record_id", records[i].RecordID, "error", err)
			continue
		}
		records[i].Image = data
	}
	return records, nil
}

// UploadScan implements ScanStore
func (b *BoltStore) UploadScan(ctx context.Context, doc *document.Document) error {
	_, err := b.PutRecord(ctx, NewRecord(doc))
	return err
}

// FetchScans implements ScanStore
func (b *BoltStore) FetchScans(ctx context.Context) ([]*document.Document, error) {
	records, err := b.Records(ctx)
	if err != nil {
		return nil, err
	}
	return documents(records), nil
}

// Close closes the database
func (b *BoltStore) Close() error {
	return b.db.Close()
}

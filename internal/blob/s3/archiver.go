package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/predictory-labs/predictory/internal/client"
	"github.com/predictory-labs/predictory/internal/domain"
)

// ---------------------------------------------------------------------------
// Narrow interfaces required by the archiver.
//
// The archiver only needs the capabilities it actually calls, not full
// store types. Writer, Reader, the client.Reader, and the Postgres event
// store satisfy these implicitly.
// ---------------------------------------------------------------------------

// ObjectWriter uploads one object to the archive bucket.
type ObjectWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// ObjectReader reads back objects from the archive bucket.
type ObjectReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// SnapshotSource provides read access to full event snapshots.
type SnapshotSource interface {
	Snapshot(id domain.EventID) (client.EventSnapshot, error)
}

// SettledIndex tracks which terminal events still need archiving.
type SettledIndex interface {
	// ListUnarchivedSettled returns ids of events with a posted result or a
	// cancellation that have not yet been archived.
	ListUnarchivedSettled(ctx context.Context) ([]domain.EventID, error)

	// MarkArchived records that an event has been written to the archive.
	MarkArchived(ctx context.Context, id domain.EventID) error
}

// Archiver uploads terminal event snapshots to S3 as JSON documents.
//
// Rows are marked archived only after the upload succeeds, so a failed sweep
// retries the same events on the next run. Nothing is deleted from the
// primary store here.
type Archiver struct {
	writer    ObjectWriter
	reader    ObjectReader
	snapshots SnapshotSource
	index     SettledIndex
	prefix    string
}

// NewArchiver creates a new Archiver writing under the given key prefix.
func NewArchiver(writer ObjectWriter, reader ObjectReader, snapshots SnapshotSource, index SettledIndex, prefix string) *Archiver {
	if prefix == "" {
		prefix = "settlements"
	}
	return &Archiver{
		writer:    writer,
		reader:    reader,
		snapshots: snapshots,
		index:     index,
		prefix:    prefix,
	}
}

// Sweep archives every settled or canceled event that has not been archived
// yet and returns the number of events written.
func (a *Archiver) Sweep(ctx context.Context) (int64, error) {
	ids, err := a.index.ListUnarchivedSettled(ctx)
	if err != nil {
		return 0, fmt.Errorf("s3blob: sweep query: %w", err)
	}

	var count int64
	for _, id := range ids {
		if err := a.ArchiveEvent(ctx, id); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// ArchiveEvent uploads one event snapshot and marks its projection row
// archived. When the object is already present in the bucket it is read back
// and verified first: a sweep that died between upload and mark resumes here
// without rewriting a good document, while a torn or foreign object is
// replaced.
func (a *Archiver) ArchiveEvent(ctx context.Context, id domain.EventID) error {
	snap, err := a.snapshots.Snapshot(id)
	if err != nil {
		return fmt.Errorf("s3blob: archive event %s: %w", id, err)
	}

	path := a.eventPath(snap.Event)
	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("s3blob: archive event %s head: %w", id, err)
	}

	if exists {
		stored, err := a.Restore(ctx, snap.Event)
		if err == nil && stored.Event.ID == id {
			if err := a.index.MarkArchived(ctx, id); err != nil {
				return fmt.Errorf("s3blob: archive event %s mark: %w", id, err)
			}
			return nil
		}
		// Unreadable or mismatched document; fall through and rewrite it.
	}

	buf, err := marshalIndented(snap)
	if err != nil {
		return fmt.Errorf("s3blob: archive event %s marshal: %w", id, err)
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive event %s upload: %w", id, err)
	}

	if err := a.index.MarkArchived(ctx, id); err != nil {
		return fmt.Errorf("s3blob: archive event %s mark: %w", id, err)
	}
	return nil
}

// Restore reads an archived snapshot back from the bucket. The event record
// determines the object key; pass the projection row's event when the ledger
// no longer holds the full state.
func (a *Archiver) Restore(ctx context.Context, ev domain.Event) (client.EventSnapshot, error) {
	path := a.eventPath(ev)

	body, err := a.reader.Get(ctx, path)
	if err != nil {
		return client.EventSnapshot{}, fmt.Errorf("s3blob: restore event %s: %w", ev.ID, err)
	}
	defer body.Close()

	var snap client.EventSnapshot
	if err := json.NewDecoder(body).Decode(&snap); err != nil {
		return client.EventSnapshot{}, fmt.Errorf("s3blob: restore event %s decode: %w", ev.ID, err)
	}
	return snap, nil
}

// eventPath builds the S3 key for an archived event, partitioned by the
// year-month of the event's end date.
//
//	settlements/2026-08/9f3b....json
func (a *Archiver) eventPath(ev domain.Event) string {
	month := time.Unix(ev.EndDate, 0).UTC().Format("2006-01")
	return fmt.Sprintf("%s/%s/%s.json", a.prefix, month, ev.ID)
}

// marshalIndented serialises a value as indented JSON without HTML escaping.
func marshalIndented(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

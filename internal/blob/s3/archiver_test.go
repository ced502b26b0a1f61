package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictory-labs/predictory/internal/client"
	"github.com/predictory-labs/predictory/internal/domain"
)

// memBucket backs the fake writer and reader with a shared object map.
type memBucket struct {
	objects map[string][]byte
	puts    int
	putErr  error
}

func newMemBucket() *memBucket {
	return &memBucket{objects: make(map[string][]byte)}
}

func (b *memBucket) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if b.putErr != nil {
		return b.putErr
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.objects[path] = buf
	b.puts++
	return nil
}

func (b *memBucket) Get(_ context.Context, path string) (io.ReadCloser, error) {
	buf, ok := b.objects[path]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (b *memBucket) Exists(_ context.Context, path string) (bool, error) {
	_, ok := b.objects[path]
	return ok, nil
}

// fakeSnapshots serves snapshots from a map keyed by event id.
type fakeSnapshots struct {
	snaps map[domain.EventID]client.EventSnapshot
}

func (f *fakeSnapshots) Snapshot(id domain.EventID) (client.EventSnapshot, error) {
	snap, ok := f.snaps[id]
	if !ok {
		return client.EventSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

// fakeIndex tracks which events await archiving and which are marked done.
type fakeIndex struct {
	pending []domain.EventID
	marked  map[domain.EventID]bool
}

func newFakeIndex(ids ...domain.EventID) *fakeIndex {
	return &fakeIndex{pending: ids, marked: make(map[domain.EventID]bool)}
}

func (f *fakeIndex) ListUnarchivedSettled(context.Context) ([]domain.EventID, error) {
	return f.pending, nil
}

func (f *fakeIndex) MarkArchived(_ context.Context, id domain.EventID) error {
	f.marked[id] = true
	return nil
}

func settledSnapshot(id domain.EventID, endDate int64) client.EventSnapshot {
	result := uint8(1)
	return client.EventSnapshot{
		Event: domain.Event{
			Version:   domain.EventVersion,
			ID:        id,
			StartDate: endDate - 3600,
			EndDate:   endDate,
			Result:    &result,
		},
		Name: "closed market",
	}
}

func TestSweepArchivesAndMarks(t *testing.T) {
	id := domain.NewEventID()
	end := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC).Unix()

	bucket := newMemBucket()
	index := newFakeIndex(id)
	snaps := &fakeSnapshots{snaps: map[domain.EventID]client.EventSnapshot{
		id: settledSnapshot(id, end),
	}}

	a := NewArchiver(bucket, bucket, snaps, index, "settlements")

	count, err := a.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.True(t, index.marked[id])

	// The document lands under the end-date month partition.
	path := fmt.Sprintf("settlements/2026-08/%s.json", id)
	require.Contains(t, bucket.objects, path)

	var stored client.EventSnapshot
	require.NoError(t, json.Unmarshal(bucket.objects[path], &stored))
	assert.Equal(t, id, stored.Event.ID)
	assert.Equal(t, "closed market", stored.Name)
}

func TestArchiveEventSkipsVerifiedObject(t *testing.T) {
	id := domain.NewEventID()
	end := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC).Unix()
	snap := settledSnapshot(id, end)

	bucket := newMemBucket()
	index := newFakeIndex(id)
	snaps := &fakeSnapshots{snaps: map[domain.EventID]client.EventSnapshot{id: snap}}

	// Simulate a prior sweep that uploaded but died before marking.
	path := fmt.Sprintf("settlements/2026-08/%s.json", id)
	buf, err := json.Marshal(snap)
	require.NoError(t, err)
	bucket.objects[path] = buf

	a := NewArchiver(bucket, bucket, snaps, index, "settlements")
	require.NoError(t, a.ArchiveEvent(context.Background(), id))

	assert.Zero(t, bucket.puts, "verified object must not be rewritten")
	assert.True(t, index.marked[id])
}

func TestArchiveEventRewritesTornObject(t *testing.T) {
	id := domain.NewEventID()
	end := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC).Unix()
	snap := settledSnapshot(id, end)

	bucket := newMemBucket()
	index := newFakeIndex(id)
	snaps := &fakeSnapshots{snaps: map[domain.EventID]client.EventSnapshot{id: snap}}

	// A torn write from a dead sweep left a document without this event's id.
	path := fmt.Sprintf("settlements/2026-08/%s.json", id)
	bucket.objects[path] = []byte(`{}`)

	a := NewArchiver(bucket, bucket, snaps, index, "settlements")
	require.NoError(t, a.ArchiveEvent(context.Background(), id))

	assert.Equal(t, 1, bucket.puts, "torn object must be rewritten")
	assert.True(t, index.marked[id])

	var stored client.EventSnapshot
	require.NoError(t, json.Unmarshal(bucket.objects[path], &stored))
	assert.Equal(t, id, stored.Event.ID)
}

func TestArchiveEventUploadFailureLeavesUnmarked(t *testing.T) {
	id := domain.NewEventID()
	end := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC).Unix()

	bucket := newMemBucket()
	bucket.putErr = errors.New("bucket unavailable")
	index := newFakeIndex(id)
	snaps := &fakeSnapshots{snaps: map[domain.EventID]client.EventSnapshot{
		id: settledSnapshot(id, end),
	}}

	a := NewArchiver(bucket, bucket, snaps, index, "settlements")

	count, err := a.Sweep(context.Background())
	require.Error(t, err)
	assert.Zero(t, count)
	assert.False(t, index.marked[id], "failed upload must stay pending")
}

func TestRestoreRoundTrip(t *testing.T) {
	id := domain.NewEventID()
	end := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC).Unix()
	snap := settledSnapshot(id, end)

	bucket := newMemBucket()
	index := newFakeIndex(id)
	snaps := &fakeSnapshots{snaps: map[domain.EventID]client.EventSnapshot{id: snap}}

	a := NewArchiver(bucket, bucket, snaps, index, "settlements")
	require.NoError(t, a.ArchiveEvent(context.Background(), id))

	restored, err := a.Restore(context.Background(), snap.Event)
	require.NoError(t, err)
	assert.Equal(t, snap.Event.ID, restored.Event.ID)
	assert.Equal(t, snap.Name, restored.Name)
	require.NotNil(t, restored.Event.Result)
	assert.Equal(t, *snap.Event.Result, *restored.Event.Result)
}

func TestRestoreMissingObject(t *testing.T) {
	id := domain.NewEventID()
	end := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC).Unix()
	snap := settledSnapshot(id, end)

	bucket := newMemBucket()
	a := NewArchiver(bucket, bucket, &fakeSnapshots{}, newFakeIndex(), "settlements")

	_, err := a.Restore(context.Background(), snap.Event)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

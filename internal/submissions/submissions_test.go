package submissions_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/pathways/internal/submissions"
	"github.com/JaimeStill/pathways/pkg/lifecycle"
	"github.com/JaimeStill/pathways/pkg/storage"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew(t *testing.T) {
	s := submissions.New(submissions.CreateCommand{
		ContentType:   "audio/webm",
		SubmitterName: "  Alice ",
		LocationKey:   " SW1A 1AA ",
	})

	if s.ID == uuid.Nil {
		t.Error("expected generated id")
	}
	if s.Status != submissions.StatusUploading {
		t.Errorf("status: got %s, want uploading", s.Status)
	}
	if s.SubmitterName != "Alice" || s.LocationKey != "SW1A 1AA" {
		t.Errorf("metadata not trimmed: %q %q", s.SubmitterName, s.LocationKey)
	}
	if !s.HasLocationKey() {
		t.Error("HasLocationKey should be true")
	}
}

func TestHasLocationKeyBlank(t *testing.T) {
	for _, key := range []string{"", "   ", "\t"} {
		s := &submissions.Submission{LocationKey: key}
		if s.HasLocationKey() {
			t.Errorf("HasLocationKey(%q) should be false", key)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := submissions.NewMemoryStore()

	s := submissions.New(submissions.CreateCommand{ContentType: "text/plain", SubmitterName: "Bob"})

	if _, err := store.Get(ctx, s.ID); !errors.Is(err, submissions.ErrNotFound) {
		t.Fatalf("Get missing: got %v, want ErrNotFound", err)
	}

	if err := store.Put(ctx, s); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// mutations after Put must not leak into the store
	s.Transcript = "changed"

	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Transcript != "" {
		t.Errorf("store shares state with caller: transcript %q", got.Transcript)
	}
	if got.SubmitterName != "Bob" {
		t.Errorf("submitter: got %q, want Bob", got.SubmitterName)
	}

	got.Transcript = "again"
	if err := store.Put(ctx, got); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	again, _ := store.Get(ctx, s.ID)
	if again.Transcript != "again" {
		t.Errorf("overwrite: got %q, want again", again.Transcript)
	}

	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete twice: %v", err)
	}
	if _, err := store.Get(ctx, s.ID); !errors.Is(err, submissions.ErrNotFound) {
		t.Errorf("Get after delete: got %v, want ErrNotFound", err)
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{submissions.ErrNotFound, 404},
		{submissions.ErrPayloadNotFound, 404},
		{submissions.ErrDuplicate, 409},
		{errors.New("boom"), 500},
	}

	for _, tt := range tests {
		if got := submissions.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

type row struct {
	values []any
}

func (r row) Scan(dest ...any) error {
	for i, d := range dest {
		switch p := d.(type) {
		case *uuid.UUID:
			*p = r.values[i].(uuid.UUID)
		case *string:
			*p = r.values[i].(string)
		case *int:
			*p = r.values[i].(int)
		case *[]byte:
			if r.values[i] != nil {
				*p = r.values[i].([]byte)
			}
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

func rowWith(rep, failure []byte) row {
	now := time.Now()
	return row{values: []any{
		uuid.New(), "audio/webm", "Alice", "SW1A 1AA", "hello",
		rep, nil, nil,
		"error", 30, failure, now, now,
	}}
}

func TestScanSubmission(t *testing.T) {
	s, err := submissions.ScanSubmission(rowWith(
		[]byte(`{"name":"Jane MP","email":"jane@parliament.uk"}`),
		[]byte(`{"kind":"internal","message":"try again"}`),
	))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if s.Representative == nil || s.Representative.Name != "Jane MP" {
		t.Errorf("representative: got %+v", s.Representative)
	}
	if s.PublicDocument != nil {
		t.Error("NULL column should decode to nil")
	}
	if s.Status != submissions.StatusError || s.Failure == nil || s.Failure.Kind != "internal" {
		t.Errorf("status/failure: %s %+v", s.Status, s.Failure)
	}
}

func TestScanSubmissionMalformed(t *testing.T) {
	_, err := submissions.ScanSubmission(rowWith([]byte(`{"name":`), nil))
	if !errors.Is(err, submissions.ErrNotFound) {
		t.Errorf("malformed record: got %v, want ErrNotFound", err)
	}
}

func TestMemorySlot(t *testing.T) {
	testSlot(t, submissions.NewMemorySlot())
}

func TestBlobSlot(t *testing.T) {
	testSlot(t, submissions.NewBlobSlot(newFakeStorage(), discard()))
}

func testSlot(t *testing.T, slot submissions.PayloadSlot) {
	t.Helper()
	ctx := context.Background()
	first, second := uuid.New(), uuid.New()

	if _, err := slot.Get(ctx, first); !errors.Is(err, submissions.ErrPayloadNotFound) {
		t.Fatalf("empty slot: got %v, want ErrPayloadNotFound", err)
	}

	data := []byte("audio-bytes")
	if err := slot.Set(ctx, first, submissions.Payload{Data: data, ContentType: "audio/webm"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data[0] = 'X'

	got, err := slot.Get(ctx, first)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Data) != "audio-bytes" || got.ContentType != "audio/webm" {
		t.Errorf("payload: got %q %q", got.Data, got.ContentType)
	}

	if err := slot.Set(ctx, second, submissions.Payload{Data: []byte("text"), ContentType: "text/plain"}); err != nil {
		t.Fatalf("Set second: %v", err)
	}
	if _, err := slot.Get(ctx, first); !errors.Is(err, submissions.ErrPayloadNotFound) {
		t.Errorf("overwritten owner: got %v, want ErrPayloadNotFound", err)
	}

	if err := slot.Clear(ctx, first); err != nil {
		t.Fatalf("Clear non-owner: %v", err)
	}
	if _, err := slot.Get(ctx, second); err != nil {
		t.Errorf("Clear by non-owner emptied the slot: %v", err)
	}

	if err := slot.Clear(ctx, second); err != nil {
		t.Fatalf("Clear owner: %v", err)
	}
	if _, err := slot.Get(ctx, second); !errors.Is(err, submissions.ErrPayloadNotFound) {
		t.Errorf("after Clear: got %v, want ErrPayloadNotFound", err)
	}
}

type fakeBlob struct {
	data        []byte
	contentType string
	metadata    map[string]string
}

type fakeStorage struct {
	mu    sync.Mutex
	blobs map[string]fakeBlob
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{blobs: make(map[string]fakeBlob)}
}

func (f *fakeStorage) Start(*lifecycle.Coordinator) error { return nil }

func (f *fakeStorage) Upload(_ context.Context, key string, r io.Reader, opts storage.UploadOptions) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = fakeBlob{data: data, contentType: opts.ContentType, metadata: maps.Clone(opts.Metadata)}
	return nil
}

func (f *fakeStorage) Download(_ context.Context, key string) (*storage.Blob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	meta := make(map[string]string, len(b.metadata))
	for k, v := range b.metadata {
		meta[strings.ToLower(k)] = v
	}
	return &storage.Blob{
		Body:          io.NopCloser(bytes.NewReader(b.data)),
		ContentType:   b.contentType,
		ContentLength: int64(len(b.data)),
		Metadata:      meta,
	}, nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blobs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(f.blobs, key)
	return nil
}


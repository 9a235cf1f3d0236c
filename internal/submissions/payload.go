package submissions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/JaimeStill/pathways/pkg/storage"
)

// Payload is the raw submission content. It is never part of a snapshot.
type Payload struct {
	Data        []byte
	ContentType string
}

// Size returns the payload length in bytes.
func (p Payload) Size() int64 {
	return int64(len(p.Data))
}

// PayloadSlot is a single-entry cache: the most recent Set wins and every
// other owner reads ErrPayloadNotFound.
type PayloadSlot interface {
	Set(ctx context.Context, id uuid.UUID, p Payload) error
	Get(ctx context.Context, id uuid.UUID) (*Payload, error)
	// Clear empties the slot when it is owned by id.
	Clear(ctx context.Context, id uuid.UUID) error
}

type memorySlot struct {
	mu      sync.Mutex
	owner   uuid.UUID
	payload *Payload
}

// NewMemorySlot returns a process-local PayloadSlot.
func NewMemorySlot() PayloadSlot {
	return &memorySlot{}
}

func (m *memorySlot) Set(_ context.Context, id uuid.UUID, p Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.owner = id
	m.payload = &Payload{
		Data:        bytes.Clone(p.Data),
		ContentType: p.ContentType,
	}
	return nil
}

func (m *memorySlot) Get(_ context.Context, id uuid.UUID) (*Payload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.payload == nil || m.owner != id {
		return nil, ErrPayloadNotFound
	}
	return &Payload{
		Data:        bytes.Clone(m.payload.Data),
		ContentType: m.payload.ContentType,
	}, nil
}

func (m *memorySlot) Clear(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owner == id {
		m.owner = uuid.Nil
		m.payload = nil
	}
	return nil
}

const (
	slotKey      = "payload/current"
	ownerMetaKey = "submission"
)

type blobSlot struct {
	store  storage.System
	logger *slog.Logger
}

// NewBlobSlot keeps the single slot in one fixed blob. The owning submission
// id is written to blob metadata and the mime type to the blob content type.
func NewBlobSlot(store storage.System, logger *slog.Logger) PayloadSlot {
	return &blobSlot{
		store:  store,
		logger: logger.With("system", "payload-slot"),
	}
}

func (b *blobSlot) Set(ctx context.Context, id uuid.UUID, p Payload) error {
	opts := storage.UploadOptions{
		ContentType: p.ContentType,
		Metadata:    map[string]string{ownerMetaKey: id.String()},
	}

	if err := b.store.Upload(ctx, slotKey, bytes.NewReader(p.Data), opts); err != nil {
		return fmt.Errorf("set payload for %s: %w", id, err)
	}

	b.logger.InfoContext(ctx, "payload stored", "id", id, "size", p.Size(), "content_type", p.ContentType)
	return nil
}

func (b *blobSlot) Get(ctx context.Context, id uuid.UUID) (*Payload, error) {
	blob, err := b.open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer blob.Body.Close()

	data, err := io.ReadAll(blob.Body)
	if err != nil {
		return nil, fmt.Errorf("read payload for %s: %w", id, err)
	}

	return &Payload{Data: data, ContentType: blob.ContentType}, nil
}

func (b *blobSlot) Clear(ctx context.Context, id uuid.UUID) error {
	blob, err := b.open(ctx, id)
	if errors.Is(err, ErrPayloadNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	blob.Body.Close()

	if err := b.store.Delete(ctx, slotKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("clear payload for %s: %w", id, err)
	}

	b.logger.InfoContext(ctx, "payload cleared", "id", id)
	return nil
}

// open returns the slot blob when it is owned by id. The caller closes Body.
func (b *blobSlot) open(ctx context.Context, id uuid.UUID) (*storage.Blob, error) {
	blob, err := b.store.Download(ctx, slotKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrPayloadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load payload for %s: %w", id, err)
	}

	if blob.Metadata[ownerMetaKey] != id.String() {
		blob.Body.Close()
		return nil, ErrPayloadNotFound
	}
	return blob, nil
}

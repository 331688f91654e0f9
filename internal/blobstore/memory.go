package blobstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"upqueue/internal/models"
)

const BlobPath = "/blob/"

type Object struct {
	Data        []byte
	ContentType string
	StoredAt    time.Time
}

// Memory keeps objects in process. Only keys it allocated can be written.
type Memory struct {
	mu        sync.RWMutex
	publicURL string
	allocated map[string]bool
	objects   map[string]Object
}

func NewMemory(publicURL string) *Memory {
	return &Memory{
		publicURL: strings.TrimRight(publicURL, "/"),
		allocated: make(map[string]bool),
		objects:   make(map[string]Object),
	}
}

func (m *Memory) Presign(_ context.Context, count int) ([]models.SlotLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	links := make([]models.SlotLink, 0, count)
	for i := 0; i < count; i++ {
		key := uuid.NewString()
		m.allocated[key] = true
		links = append(links, models.SlotLink{Url: m.objectURL(key), Key: key})
	}
	return links, nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *Memory) DownloadURL(_ context.Context, key string) (string, error) {
	return m.objectURL(key), nil
}

// Put stores data under an allocated key, replacing earlier content.
func (m *Memory) Put(key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.allocated[key] {
		return ErrUnknownKey
	}
	m.objects[key] = Object{Data: data, ContentType: contentType, StoredAt: time.Now()}
	return nil
}

func (m *Memory) Get(key string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return Object{}, ErrNotFound
	}
	return obj, nil
}

func (m *Memory) objectURL(key string) string {
	return m.publicURL + BlobPath + key
}

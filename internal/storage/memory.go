package storage

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
)

type MemoryObject struct {
	Data         []byte
	ContentType  string
	CacheControl string
}

// MemoryStore is an in-process ObjectStore for tests and dry runs.
type MemoryStore struct {
	mu         sync.Mutex
	objects    map[string]MemoryObject
	publicBase string
}

func NewMemoryStore(publicBase string) *MemoryStore {
	return &MemoryStore{
		objects:    make(map[string]MemoryObject),
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType, cacheControl string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = MemoryObject{Data: data, ContentType: contentType, CacheControl: cacheControl}

	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := []string{}
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	return keys, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)

	return nil
}

func (m *MemoryStore) PublicURL(key string) string {
	return m.publicBase + "/" + key
}

func (m *MemoryStore) Get(key string) (MemoryObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]

	return o, ok
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.objects)
}

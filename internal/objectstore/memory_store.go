package objectstore

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory ObjectStore. Keys are listed in lexicographic
// order, pageSize keys at a time, the way S3 returns them.
type MemoryStore struct {
	mu         sync.Mutex
	bucketName string
	objects    map[string]memoryObject
	pageSize   int

	listErr error
	getErrs map[string]error

	// PagesServed counts listing pages handed out, for pagination tests
	PagesServed int
	// Fetches records every key passed to GetObject, in call order
	Fetches []string
}

type memoryObject struct {
	body         []byte
	lastModified time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(bucketName string) *MemoryStore {
	return &MemoryStore{
		bucketName: bucketName,
		objects:    make(map[string]memoryObject),
		getErrs:    make(map[string]error),
		pageSize:   1000,
	}
}

// PutObject adds or replaces an object
func (m *MemoryStore) PutObject(key string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = memoryObject{
		body:         append([]byte(nil), body...),
		lastModified: time.Now(),
	}
}

// SetPageSize changes how many keys each listing page holds
func (m *MemoryStore) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n > 0 {
		m.pageSize = n
	}
}

// SetListError makes every listing fail with err
func (m *MemoryStore) SetListError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listErr = err
}

// SetGetError makes GetObject fail with err for key
func (m *MemoryStore) SetGetError(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getErrs[key] = err
}

// ListObjects implements ObjectStore.ListObjects
func (m *MemoryStore) ListObjects(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		startAfter := ""
		for {
			if err := ctx.Err(); err != nil {
				yield(ObjectInfo{}, fmt.Errorf("list objects: %w", err))
				return
			}

			page, more, err := m.nextPage(prefix, startAfter)
			if err != nil {
				yield(ObjectInfo{}, err)
				return
			}

			for _, info := range page {
				if !yield(info, nil) {
					return
				}
			}

			if !more {
				return
			}
			startAfter = page[len(page)-1].Key
		}
	}
}

func (m *MemoryStore) nextPage(prefix, startAfter string) ([]ObjectInfo, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, false, fmt.Errorf("list objects: %w", m.listErr)
	}

	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) && key > startAfter {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	more := len(keys) > m.pageSize
	if more {
		keys = keys[:m.pageSize]
	}

	page := make([]ObjectInfo, 0, len(keys))
	for _, key := range keys {
		obj := m.objects[key]
		page = append(page, ObjectInfo{
			Key:          key,
			LastModified: obj.lastModified,
			Size:         int64(len(obj.body)),
		})
	}
	m.PagesServed++

	return page, more, nil
}

// GetObject implements ObjectStore.GetObject
func (m *MemoryStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Fetches = append(m.Fetches, key)

	if err := m.getErrs[key]; err != nil {
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}

	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("get object %q: %w", key, ErrObjectNotFound)
	}

	return append([]byte(nil), obj.body...), nil
}

// GetBucketName implements ObjectStore.GetBucketName
func (m *MemoryStore) GetBucketName() string {
	return m.bucketName
}

// Close implements ObjectStore.Close
func (m *MemoryStore) Close() error {
	return nil
}

package index

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryIndex is an in-memory BucketIndex holding versioned objects and
// in-flight multipart uploads in nested maps, covering just the listing
// surface StoreQuery needs. Safe for concurrent use.
type MemoryIndex struct {
	mu      sync.RWMutex
	objects map[string]map[string][]VersionEntry // bucket -> key -> versions, index 0 is current
	uploads map[string][]uploadRecord            // bucket -> uploads
}

type uploadRecord struct {
	Key      string
	UploadID string
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		objects: make(map[string]map[string][]VersionEntry),
		uploads: make(map[string][]uploadRecord),
	}
}

// PutObjectVersion seeds one object version, most-recent call per key
// becoming the current version. Test and demo-harness fixture helper, not
// part of the BucketIndex contract.
func (m *MemoryIndex) PutObjectVersion(bucket, key, versionID string, isDeleteMarker bool, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.objects[bucket] == nil {
		m.objects[bucket] = make(map[string][]VersionEntry)
	}
	entry := VersionEntry{Key: key, VersionID: versionID, IsDeleteMarker: isDeleteMarker, Size: size}
	versions := m.objects[bucket][key]
	for i := range versions {
		versions[i].IsCurrent = false
	}
	entry.IsCurrent = true
	m.objects[bucket][key] = append([]VersionEntry{entry}, versions...)
}

// PutMultipartUpload seeds one in-progress multipart upload.
func (m *MemoryIndex) PutMultipartUpload(bucket, key, uploadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[bucket] = append(m.uploads[bucket], uploadRecord{Key: key, UploadID: uploadID})
}

func (m *MemoryIndex) ListObjectVersions(ctx context.Context, bucket string, opts VersionListOptions) (*VersionPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 100
	}

	byKey := m.objects[bucket]
	var keys []string
	for k := range byKey {
		if opts.Prefix != "" && !strings.HasPrefix(k, opts.Prefix) {
			continue
		}
		if opts.Marker != "" && k <= opts.Marker {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var flat []VersionEntry
	for _, k := range keys {
		flat = append(flat, byKey[k]...)
	}

	isTruncated := len(flat) > maxKeys
	if isTruncated {
		flat = flat[:maxKeys]
	}

	page := &VersionPage{Entries: flat, IsTruncated: isTruncated}
	if isTruncated && len(flat) > 0 {
		page.NextMarker = flat[len(flat)-1].Key
	}
	return page, nil
}

func (m *MemoryIndex) ListMultipartUploads(ctx context.Context, bucket string, opts UploadListOptions) (*UploadPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	maxUploads := opts.MaxUploads
	if maxUploads <= 0 {
		maxUploads = 100
	}

	var all []uploadRecord
	for _, u := range m.uploads[bucket] {
		if opts.Prefix != "" && !strings.HasPrefix(u.Key, opts.Prefix) {
			continue
		}
		if opts.KeyMarker != "" {
			if u.Key < opts.KeyMarker {
				continue
			}
			if u.Key == opts.KeyMarker && opts.UploadIDMarker != "" && u.UploadID <= opts.UploadIDMarker {
				continue
			}
		}
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Key != all[j].Key {
			return all[i].Key < all[j].Key
		}
		return all[i].UploadID < all[j].UploadID
	})

	isTruncated := len(all) > maxUploads
	if isTruncated {
		all = all[:maxUploads]
	}

	page := &UploadPage{IsTruncated: isTruncated}
	for _, u := range all {
		page.Uploads = append(page.Uploads, UploadEntry{Key: u.Key, UploadID: u.UploadID})
	}
	if isTruncated && len(all) > 0 {
		last := all[len(all)-1]
		page.NextKeyMarker = last.Key
		page.NextUploadIDMarker = last.UploadID
	}
	return page, nil
}

var _ BucketIndex = (*MemoryIndex)(nil)

// Stats reports a quick count, useful for the demo harness's health
// surface rather than anything StoreQuery calls.
func (m *MemoryIndex) Stats(bucket string) (objects, uploads int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, versions := range m.objects[bucket] {
		objects += len(versions)
	}
	return objects, len(m.uploads[bucket])
}

func (m *MemoryIndex) String() string {
	return fmt.Sprintf("MemoryIndex{buckets=%d}", len(m.objects))
}

package kernel

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// BackingStore is the evicted-page store: a pid:page-keyed table of raw
// page contents, mirrored to a text file on every flush so a human can
// inspect it (original_source/Project1/MemoryManager.cpp's
// flushBackingStore). It has no lock of its own; the memory manager always
// touches it while holding memoryMutex.
type BackingStore struct {
	path          string
	valuesPerPage int
	pages         map[string][]uint16
}

// NewBackingStore creates a backing store that mirrors to path, truncating
// any pre-existing file: a fresh run always starts with an empty store.
func NewBackingStore(path string, valuesPerPage int) (*BackingStore, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("backingstore: cannot create %s: %w", path, err)
	}
	f.Close()
	return &BackingStore{
		path:          path,
		valuesPerPage: valuesPerPage,
		pages:         make(map[string][]uint16),
	}, nil
}

func pageKey(pid, pageNo int) string {
	return fmt.Sprintf("%d:%d", pid, pageNo)
}

// Load returns the stored contents of pid's page pageNo, or a fresh
// zero-filled page if it has never been written out.
func (b *BackingStore) Load(pid, pageNo int) []uint16 {
	key := pageKey(pid, pageNo)
	if data, ok := b.pages[key]; ok {
		out := make([]uint16, len(data))
		copy(out, data)
		return out
	}
	return make([]uint16, b.valuesPerPage)
}

// Store writes pid's page pageNo into the backing store, overwriting any
// prior contents, then mirrors the whole store to disk.
func (b *BackingStore) Store(pid, pageNo int, data []uint16) error {
	cp := make([]uint16, len(data))
	copy(cp, data)
	b.pages[pageKey(pid, pageNo)] = cp
	return b.flush()
}

// flush rewrites the mirror file from scratch, one "Page: <key> Data: v0 v1
// ..." line per resident entry, in stable key order.
func (b *BackingStore) flush() error {
	keys := make([]string, 0, len(b.pages))
	for k := range b.pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString("Page: ")
		sb.WriteString(k)
		sb.WriteString(" Data:")
		for _, v := range b.pages[k] {
			sb.WriteString(fmt.Sprintf(" %d", v))
		}
		sb.WriteString("\n")
	}

	if err := os.WriteFile(b.path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("backingstore: flush %s: %w", b.path, err)
	}
	return nil
}

// Resident reports how many pages currently live in the backing store.
func (b *BackingStore) Resident() int {
	return len(b.pages)
}

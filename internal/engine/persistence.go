package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/raj2399/Task-Evallo/pkg/schema"
)

// FileStore keeps the whole collection in a single JSON array file.
// Every append rewrites the file through a temp file and an atomic rename,
// so readers see either the old or the new collection, never a partial one.
type FileStore struct {
	Path string
	mu   sync.RWMutex // one writer, many readers
}

// NewFileStore prepares a store at path. The file itself is created lazily on first use.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, persistErr("create data dir", err)
	}
	return &FileStore{Path: path}, nil
}

// Append reads the full collection, adds rec and writes the collection back.
func (f *FileStore) Append(rec schema.LogRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	recs, err := f.load()
	if errors.Is(err, fs.ErrNotExist) {
		recs = []schema.LogRecord{}
	} else if err != nil {
		return err
	}

	return f.save(append(recs, rec))
}

// ReadAll returns every record in arrival order, initializing an empty collection if none exists.
func (f *FileStore) ReadAll() ([]schema.LogRecord, error) {
	f.mu.RLock()
	recs, err := f.load()
	f.mu.RUnlock()

	if errors.Is(err, fs.ErrNotExist) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if err := f.ensure(); err != nil {
			return nil, err
		}
		return f.loadOrEmpty()
	}
	return recs, err
}

func (f *FileStore) Close() error { return nil }

// load reads and decodes the file. A missing file is reported as fs.ErrNotExist unwrapped.
// It MUST be called while holding f.mu.
func (f *FileStore) load() ([]schema.LogRecord, error) {
	content, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fs.ErrNotExist
	}
	if err != nil {
		return nil, persistErr("read "+f.Path, err)
	}

	recs, err := schema.DecodeAll(content)
	if err != nil {
		return nil, persistErr("decode "+f.Path, err)
	}
	if recs == nil {
		recs = []schema.LogRecord{}
	}
	return recs, nil
}

func (f *FileStore) loadOrEmpty() ([]schema.LogRecord, error) {
	recs, err := f.load()
	if errors.Is(err, fs.ErrNotExist) {
		return []schema.LogRecord{}, nil
	}
	return recs, err
}

// ensure writes an empty collection when the file is missing. Idempotent.
// It MUST be called while holding f.mu.Lock.
func (f *FileStore) ensure() error {
	if _, err := os.Stat(f.Path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return persistErr("stat "+f.Path, err)
	}
	return f.save([]schema.LogRecord{})
}

// save writes the collection atomically.
// It MUST be called while holding f.mu.Lock.
func (f *FileStore) save(recs []schema.LogRecord) error {
	bytes, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return persistErr("encode", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return persistErr("create temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(bytes); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return persistErr("write "+tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return persistErr("sync "+tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return persistErr("close "+tmpPath, err)
	}

	// Same-directory rename replaces the file in one step.
	if err := os.Rename(tmpPath, f.Path); err != nil {
		os.Remove(tmpPath)
		return persistErr(fmt.Sprintf("rename %s", tmpPath), err)
	}
	return nil
}

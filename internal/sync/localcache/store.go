package localcache

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/valyala/bytebufferpool"

	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/sync/syncerr"
)

// TimestampSuffix marks the per-key last-write markers. Diagnostics only,
// never consulted for conflict resolution.
const TimestampSuffix = "_timestamp"

// Store is the durable per-device key/value cache. Reads never fail: an
// absent key is (nil, false). Writes go to memory first and then
// write-through to one file per key; a failed disk write is logged and
// swallowed so in-memory state stays authoritative for this session.
type Store struct {
	mu       sync.RWMutex
	entries  map[string][]byte
	dir      string
	logger   *logging.Logger
	watchers map[int]func(key string, value []byte)
	nextID   int
}

// Open loads the snapshot directory into memory. An empty dir keeps the
// store memory-only (used by tests). Unreadable entries are skipped, not
// fatal: a torn write from a crashed session must not brick the app.
func Open(dir string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Default()
	}

	s := &Store{
		entries:  make(map[string][]byte),
		dir:      strings.TrimSpace(dir),
		logger:   logger,
		watchers: make(map[int]func(string, []byte)),
	}
	if s.dir == "" {
		return s, nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, syncerr.WrapCache(err, s.dir)
	}

	names, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, syncerr.WrapCache(err, s.dir)
	}
	for _, entry := range names {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, readErr := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if readErr != nil {
			logger.Warn("skip unreadable cache entry", "file", entry.Name(), "error", readErr)
			continue
		}
		key := strings.TrimSuffix(entry.Name(), ".json")
		s.entries[key] = raw
	}

	return s, nil
}

// Get returns the stored bytes for key. Absent keys are not an error.
func (s *Store) Get(key string) ([]byte, bool) {
	if key == "" {
		return nil, false
	}

	s.mu.RLock()
	raw, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	out := make([]byte, len(raw))
	copy(out, raw)
	return out, true
}

// Set stores value under key, persists it, records the last-write marker
// and notifies watchers. Never returns an error: durability is best-effort.
func (s *Store) Set(key string, value []byte) {
	if key == "" {
		return
	}

	stamp, _ := sonic.Marshal(time.Now().UTC().Format(time.RFC3339Nano))

	s.mu.Lock()
	s.entries[key] = append([]byte(nil), value...)
	if !strings.HasSuffix(key, TimestampSuffix) {
		s.entries[key+TimestampSuffix] = stamp
	}
	watchers := make([]func(string, []byte), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.mu.Unlock()

	s.persist(key, value)
	if !strings.HasSuffix(key, TimestampSuffix) {
		s.persist(key+TimestampSuffix, stamp)
	}

	for _, fn := range watchers {
		fn(key, value)
	}
}

// SetValue sonic-encodes v and stores it under key.
func (s *Store) SetValue(key string, v any) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(v); err != nil {
		return syncerr.WrapCache(err, key)
	}
	s.Set(key, buf.Bytes())
	return nil
}

// GetValue decodes the entry under key into target. Absent keys return
// (false, nil).
func (s *Store) GetValue(key string, target any) (bool, error) {
	raw, ok := s.Get(key)
	if !ok {
		return false, nil
	}
	if err := sonic.Unmarshal(raw, target); err != nil {
		return true, syncerr.WrapCache(err, key)
	}
	return true, nil
}

// Delete removes key from memory and disk and notifies watchers with a nil
// value.
func (s *Store) Delete(key string) {
	if key == "" {
		return
	}

	s.mu.Lock()
	delete(s.entries, key)
	watchers := make([]func(string, []byte), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.mu.Unlock()

	if s.dir != "" {
		if err := os.Remove(s.fileFor(key)); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("cache delete failed", "key", key, "error", syncerr.WrapCache(err, key))
		}
	}

	for _, fn := range watchers {
		fn(key, nil)
	}
}

// LastWrite reports the diagnostics marker for key, if one exists.
func (s *Store) LastWrite(key string) (time.Time, bool) {
	raw, ok := s.Get(key + TimestampSuffix)
	if !ok {
		return time.Time{}, false
	}
	var encoded string
	if err := sonic.Unmarshal(raw, &encoded); err != nil {
		return time.Time{}, false
	}
	stamp, err := time.Parse(time.RFC3339Nano, encoded)
	if err != nil {
		return time.Time{}, false
	}
	return stamp, true
}

// Watch registers fn to run on every write or delete. The returned cancel
// removes the registration.
func (s *Store) Watch(fn func(key string, value []byte)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

func (s *Store) persist(key string, value []byte) {
	if s.dir == "" {
		return
	}

	target := s.fileFor(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", syncerr.WrapCache(err, key))
		return
	}
	if err := os.Rename(tmp, target); err != nil {
		s.logger.Warn("cache rename failed", "key", key, "error", syncerr.WrapCache(err, key))
	}
}

func (s *Store) fileFor(key string) string {
	return filepath.Join(s.dir, key+".json")
}

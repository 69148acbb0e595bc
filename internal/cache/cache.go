// Package cache is an on-disk TTL cache for catalog listings backed by LevelDB.
package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const entryPrefix = "e:"

// Disk is a LevelDB-backed cache. Entries carry their expiry in an 8-byte header.
type Disk struct {
	db  *leveldb.DB
	now func() time.Time

	mu     sync.Mutex
	hits   int64
	misses int64
}

// Stats are cumulative lookup counters.
type Stats struct {
	Hits   int64
	Misses int64
}

// Usage describes what is stored on disk.
type Usage struct {
	Live    int   `json:"live" yaml:"live"`
	Expired int   `json:"expired" yaml:"expired"`
	Bytes   int64 `json:"bytes" yaml:"bytes"`
}

// Open opens (or creates) the cache at path.
func Open(path string) (*Disk, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	return &Disk{db: db, now: time.Now}, nil
}

// Close releases the database.
func (d *Disk) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Get returns a live entry. Expired entries are deleted on read.
func (d *Disk) Get(key string) ([]byte, bool) {
	raw, err := d.db.Get([]byte(entryPrefix+key), nil)
	if err != nil {
		d.count(false)
		return nil, false
	}
	value, expires, ok := decodeEntry(raw)
	if !ok || !d.now().Before(expires) {
		_ = d.db.Delete([]byte(entryPrefix+key), nil)
		d.count(false)
		return nil, false
	}
	d.count(true)
	return value, true
}

// Set stores value for ttl.
func (d *Disk) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("cache ttl must be positive")
	}
	return d.db.Put([]byte(entryPrefix+key), encodeEntry(value, d.now().Add(ttl)), nil)
}

// Purge removes every entry, or only expired ones when expiredOnly is set.
// It returns the number of entries removed.
func (d *Disk) Purge(expiredOnly bool) (int, error) {
	it := d.db.NewIterator(util.BytesPrefix([]byte(entryPrefix)), nil)
	defer it.Release()

	now := d.now()
	batch := new(leveldb.Batch)
	removed := 0
	for it.Next() {
		if expiredOnly {
			_, expires, ok := decodeEntry(it.Value())
			if ok && now.Before(expires) {
				continue
			}
		}
		key := make([]byte, len(it.Key()))
		copy(key, it.Key())
		batch.Delete(key)
		removed++
	}
	if err := it.Error(); err != nil {
		return 0, fmt.Errorf("scan cache: %w", err)
	}
	if removed == 0 {
		return 0, nil
	}
	if err := d.db.Write(batch, nil); err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return removed, nil
}

// Usage counts live and expired entries.
func (d *Disk) Usage() (Usage, error) {
	it := d.db.NewIterator(util.BytesPrefix([]byte(entryPrefix)), nil)
	defer it.Release()

	now := d.now()
	var u Usage
	for it.Next() {
		u.Bytes += int64(len(it.Key()) + len(it.Value()))
		_, expires, ok := decodeEntry(it.Value())
		if ok && now.Before(expires) {
			u.Live++
		} else {
			u.Expired++
		}
	}
	if err := it.Error(); err != nil {
		return Usage{}, fmt.Errorf("scan cache: %w", err)
	}
	return u, nil
}

// Stats returns the hit and miss counters.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{Hits: d.hits, Misses: d.misses}
}

func (d *Disk) count(hit bool) {
	d.mu.Lock()
	if hit {
		d.hits++
	} else {
		d.misses++
	}
	d.mu.Unlock()
}

func encodeEntry(value []byte, expires time.Time) []byte {
	out := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(out[:8], uint64(expires.UnixNano()))
	copy(out[8:], value)
	return out
}

func decodeEntry(raw []byte) ([]byte, time.Time, bool) {
	if len(raw) < 8 {
		return nil, time.Time{}, false
	}
	expires := time.Unix(0, int64(binary.BigEndian.Uint64(raw[:8])))
	value := make([]byte, len(raw)-8)
	copy(value, raw[8:])
	return value, expires, true
}

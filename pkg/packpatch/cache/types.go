package cache

import (
	"bytes"
	"encoding/gob"
	"time"
)

// Version is bumped when the entry encoding changes. It is part of every key,
// so entries written by an older layout are never decoded.
const Version = 1

// KeySeparator separates the key prefix from the file path.
const KeySeparator = '\x00'

// Entry is the cached digest of one file, valid while the file's size and
// modification time are unchanged.
type Entry struct {
	Size   int64
	Mtime  int64 // UnixNano
	SHA256 [32]byte
}

// Matches reports whether the entry was recorded for a file with the given
// size and modification time.
func (e *Entry) Matches(size int64, mtime time.Time) bool {
	return e.Size == size && e.Mtime == mtime.UnixNano()
}

// Encode serializes the entry with gob.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes an entry produced by Encode.
func (e *Entry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// keyPrefix is the prefix shared by every key of the current Version.
func keyPrefix() []byte {
	return []byte{'v', byte('0' + Version), KeySeparator}
}

// MakeKey builds the cache key for an absolute file path.
func MakeKey(path string) []byte {
	return append(keyPrefix(), path...)
}

// ParseKey returns the file path encoded in key, or "" if key is not a
// current-version key.
func ParseKey(key []byte) string {
	prefix := keyPrefix()
	if !bytes.HasPrefix(key, prefix) {
		return ""
	}
	return string(key[len(prefix):])
}

package row

import (
	"encoding/binary"
	"strings"

	"github.com/zeebo/xxh3"
)

// GroupKey is the grouping identity of a row: the canonical projections of
// its values, in order. Being a tuple rather than a delimited string, no
// value content can make two distinct tuples collide.
type GroupKey []string

// KeyOf builds the GroupKey of r.
func KeyOf(r Row) GroupKey {
	return GroupKey(r.Strings())
}

// Equal reports element-wise equality.
func (k GroupKey) Equal(o GroupKey) bool {
	if len(k) != len(o) {
		return false
	}
	for i := range k {
		if k[i] != o[i] {
			return false
		}
	}
	return true
}

// Compare orders keys lexicographically element by element; a shorter key
// that is a prefix of a longer one sorts first.
func (k GroupKey) Compare(o GroupKey) int {
	for i := 0; i < len(k) && i < len(o); i++ {
		if c := strings.Compare(k[i], o[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(k) < len(o):
		return -1
	case len(k) > len(o):
		return 1
	}
	return 0
}

// Hash returns the xxh3 hash of the length-prefixed encoding of k.
func (k GroupKey) Hash() uint64 {
	n := 0
	for _, s := range k {
		n += len(s) + binary.MaxVarintLen64
	}
	buf := make([]byte, 0, n)
	for _, s := range k {
		buf = binary.AppendUvarint(buf, uint64(len(s)))
		buf = append(buf, s...)
	}
	return xxh3.Hash(buf)
}

type keyEntry[T any] struct {
	key GroupKey
	val T
}

// KeyIndex maps GroupKeys to values. Keys are bucketed by Hash and resolved
// by full tuple comparison, so hash collisions never merge groups.
//
// A KeyIndex is not safe for concurrent use.
type KeyIndex[T any] struct {
	buckets map[uint64][]keyEntry[T]
	n       int
}

// NewKeyIndex returns an empty index.
func NewKeyIndex[T any]() *KeyIndex[T] {
	return &KeyIndex[T]{buckets: make(map[uint64][]keyEntry[T])}
}

// Get returns the value stored for k.
func (ix *KeyIndex[T]) Get(k GroupKey) (T, bool) {
	for _, e := range ix.buckets[k.Hash()] {
		if e.key.Equal(k) {
			return e.val, true
		}
	}
	var zero T
	return zero, false
}

// Put stores v under k, replacing any existing value.
func (ix *KeyIndex[T]) Put(k GroupKey, v T) {
	h := k.Hash()
	bucket := ix.buckets[h]
	for i := range bucket {
		if bucket[i].key.Equal(k) {
			bucket[i].val = v
			return
		}
	}
	ix.buckets[h] = append(bucket, keyEntry[T]{key: k, val: v})
	ix.n++
}

// Len returns the number of distinct keys.
func (ix *KeyIndex[T]) Len() int { return ix.n }

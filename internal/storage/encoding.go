package storage

import (
	"encoding/binary"
	"fmt"
)

// EncodeKey builds a Badger key from a one-byte prefix and the given segments.
// Strings are terminated by '/' so that a key never prefixes a longer sibling.
func EncodeKey(prefix uint8, segments ...interface{}) []byte {
	key := []byte{prefix}
	var val []byte
	for _, segment := range segments {
		switch s := segment.(type) {
		case uint64:
			val = make([]byte, 8)
			binary.BigEndian.PutUint64(val, s)
		case string:
			val = make([]byte, 0, len(s)+1)
			val = append(val, s...)
			val = append(val, '/')
		default:
			panic(fmt.Sprintf("unknown type (%T)", segment))
		}
		key = append(key, val...)
	}

	return key
}

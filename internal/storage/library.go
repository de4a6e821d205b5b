package storage

// Codec serializes values stored in Badger.
type Codec interface {
	Marshal(value interface{}) ([]byte, error)
	Unmarshal(data []byte, value interface{}) error
}

// Library is the storage library.
type Library struct {
	codec Codec
}

// New returns a new storage library using the given codec.
func New(codec Codec) *Library {
	lib := Library{
		codec: codec,
	}

	return &lib
}

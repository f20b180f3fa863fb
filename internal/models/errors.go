package models

import "errors"

var (
	// ErrConfig indicates invalid parameters such as chunk overlap not smaller than chunk size or k <= 0.
	ErrConfig = errors.New("invalid configuration")

	// ErrEmbeddingUnavailable indicates the embedding backend failed or could not be reached.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

	// ErrEmptyCorpus indicates a build produced zero chunks.
	ErrEmptyCorpus = errors.New("corpus produced no chunks")

	// ErrCorruptStore indicates persisted artifacts are unreadable or misaligned.
	ErrCorruptStore = errors.New("corrupt store")

	// ErrOutOfRange indicates a chunk store position outside [0, size).
	ErrOutOfRange = errors.New("position out of range")

	// ErrInvalidQuery indicates an empty or whitespace-only query.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrIndexNotLoaded indicates a query arrived before any build was loaded.
	ErrIndexNotLoaded = errors.New("index not loaded")

	// ErrDuplicateSource indicates two documents in one build share a name.
	ErrDuplicateSource = errors.New("duplicate source name")
)

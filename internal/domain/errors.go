package domain

import "errors"

var (
	// ErrEmbedderUnavailable marks a failed external embedding call. Search
	// keeps serving the last-good snapshot; indexing retries on the next
	// trigger.
	ErrEmbedderUnavailable = errors.New("embedder unavailable")

	// ErrCorruptIndex is returned when the persisted vector and metadata
	// parts disagree. The load is refused; a rebuild is required.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrUnreadableDocument marks a single document that could not be read
	// during indexing. The document is skipped; the batch proceeds.
	ErrUnreadableDocument = errors.New("unreadable document")

	// ErrIndexNotFound is returned when no persisted index exists under the
	// requested name.
	ErrIndexNotFound = errors.New("index not found")
)

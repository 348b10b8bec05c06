package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrNotFound
	ErrInvalid
	ErrInternal
	ErrInvalidFile
	ErrUnsupportedFormat
	ErrIngestFailed
	ErrStoreUnavailable
	ErrAIUnavailable
	ErrTooMany
)

package transcode

import "errors"

// Sentinel errors surfaced by the transcode engine. The HTTP layer maps them
// to status codes.
var (
	// ErrInvalidSettings indicates a malformed or unsupported capability
	// descriptor.
	ErrInvalidSettings = errors.New("invalid transcode settings")

	// ErrUnknownSession indicates an operation on a session that was
	// evicted or never existed.
	ErrUnknownSession = errors.New("unknown session")

	// ErrNoMetadata indicates a source index out of range or a play id
	// with no catalog entry.
	ErrNoMetadata = errors.New("no metadata")

	// ErrNoVideoStream indicates the probed file carries no video.
	ErrNoVideoStream = errors.New("no video stream")

	// ErrStartupTimeout indicates the encoder produced no media within the
	// startup window.
	ErrStartupTimeout = errors.New("encoder startup timeout")

	// ErrSegmentWaitTimeout indicates a segment did not become ready
	// within the wait window.
	ErrSegmentWaitTimeout = errors.New("segment wait timeout")

	// ErrEncoderLaunch indicates the encoder process could not be spawned.
	ErrEncoderLaunch = errors.New("encoder launch failure")
)

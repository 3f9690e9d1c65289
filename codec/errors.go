package codec

import "errors"

// Decode error taxonomy (spec §4.1 "Errors"). These are sentinel errors so
// callers can classify with errors.Is; internal/logger.NodeError codes
// (ErrCode*) map 1:1 onto them for the pipeline's structured reporting.
var (
	ErrUnknownMeta       = errors.New("codec: unknown meta")
	ErrBadSignature      = errors.New("codec: bad signature")
	ErrTruncated         = errors.New("codec: truncated packet")
	ErrCommunityMismatch = errors.New("codec: community mismatch")
)

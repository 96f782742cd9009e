package dnsmsg

import "errors"

// Codec errors. They are local to a single message and callers are expected to
// compare with errors.Is, since most are returned wrapped with offset context.
var (
	ErrTruncatedData    = errors.New("truncated data")
	ErrInvalidLabelType = errors.New("invalid label type")
	ErrCompressionLoop  = errors.New("invalid loop in domain decompression")
	ErrNameTooLong      = errors.New("cannot encode domain name")
	ErrSlackData        = errors.New("unexpected slack data")
	ErrUnexpectedSlack  = errors.New("unexpected slack data in record payload")
	ErrMessageTooLarge  = errors.New("message too large")
)

package codec

import "errors"

// Sentinel kinds for codec errors.
var (
	ErrEncode = errors.New("encode profile set")
	ErrDecode = errors.New("decode profile set")
)

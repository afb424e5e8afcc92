package hdlc

import (
	"errors"
	"fmt"
)

var (
	// ErrFraming means the bytes are not a well formed frame: a flag is
	// missing, an escape has nothing after it, or a raw flag sits inside.
	ErrFraming = errors.New("hdlc: framing error")

	// ErrChecksum means the frame is well formed but its checksum is wrong.
	ErrChecksum = errors.New("hdlc: checksum mismatch")

	// ErrBufferTooSmall means the destination cannot hold a worst case frame.
	ErrBufferTooSmall = errors.New("hdlc: destination buffer too small")
)

// ChecksumError reports the checksum carried by a frame and the one
// computed over its payload. It matches ErrChecksum with errors.Is.
type ChecksumError struct {
	Want uint16
	Got  uint16
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("hdlc: checksum mismatch: computed 0x%04X, frame carries 0x%04X", e.Want, e.Got)
}

func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksum
}

func framingError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrFraming}, args...)...)
}

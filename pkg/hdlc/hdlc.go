// Package hdlc implements the flag delimited, byte stuffed framing used on
// Qualcomm DIAG channels.
//
// A frame on the wire is
//
//	0x7E | stuff(payload ++ checksum[lo] ++ checksum[hi]) | 0x7E
//
// where stuffing replaces every 0x7E or 0x7D with 0x7D followed by the
// original byte XOR 0x20. The package is pure: no I/O, no logging.
package hdlc

const (
	Flag       = 0x7E
	Escape     = 0x7D
	EscapeMask = 0x20

	// checksumSize is the length of the trailing frame check sequence.
	checksumSize = 2

	// MinFrameLen is the shortest valid frame: two flags around a checksum.
	MinFrameLen = 2 + checksumSize
)

// MaxEncodedLen returns the worst case frame size for an n byte payload,
// reached when every payload and checksum byte needs escaping.
func MaxEncodedLen(n int) int {
	return 2*(n+checksumSize) + 2
}

// EncodeTo writes the frame for payload into dst and returns its length.
// dst must hold MaxEncodedLen(len(payload)) bytes, otherwise EncodeTo
// returns ErrBufferTooSmall and leaves dst untouched.
func EncodeTo(dst, payload []byte) (int, error) {
	if len(dst) < MaxEncodedLen(len(payload)) {
		return 0, ErrBufferTooSmall
	}

	crc := Checksum(payload)

	n := 0
	dst[n] = Flag
	n++
	for _, b := range payload {
		n += stuff(dst[n:], b)
	}
	n += stuff(dst[n:], byte(crc))
	n += stuff(dst[n:], byte(crc>>8))
	dst[n] = Flag
	n++

	return n, nil
}

// Encode returns a newly allocated frame for payload.
func Encode(payload []byte) []byte {
	buf := make([]byte, MaxEncodedLen(len(payload)))
	n, _ := EncodeTo(buf, payload)
	return buf[:n]
}

func stuff(dst []byte, b byte) int {
	if b == Flag || b == Escape {
		dst[0] = Escape
		dst[1] = b ^ EscapeMask
		return 2
	}
	dst[0] = b
	return 1
}

// Decode validates frame and returns its payload. Structural problems wrap
// ErrFraming; a bad checksum is a *ChecksumError, which matches ErrChecksum.
func Decode(frame []byte) ([]byte, error) {
	if len(frame) < MinFrameLen {
		return nil, framingError("frame too short (%d bytes)", len(frame))
	}
	if frame[0] != Flag {
		return nil, framingError("missing leading flag (got 0x%02X)", frame[0])
	}
	if frame[len(frame)-1] != Flag {
		return nil, framingError("missing trailing flag (got 0x%02X)", frame[len(frame)-1])
	}

	body := frame[1 : len(frame)-1]
	raw := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		switch b := body[i]; b {
		case Flag:
			return nil, framingError("unescaped flag at offset %d", i+1)
		case Escape:
			if i+1 == len(body) {
				return nil, framingError("escape at end of frame")
			}
			i++
			raw = append(raw, body[i]^EscapeMask)
		default:
			raw = append(raw, b)
		}
	}

	if len(raw) < checksumSize {
		return nil, framingError("frame too short for checksum (%d bytes unstuffed)", len(raw))
	}

	payload := raw[:len(raw)-checksumSize]
	got := uint16(raw[len(raw)-2]) | uint16(raw[len(raw)-1])<<8
	if want := Checksum(payload); want != got {
		return nil, &ChecksumError{Want: want, Got: got}
	}

	return payload, nil
}

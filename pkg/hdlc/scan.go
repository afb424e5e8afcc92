package hdlc

import "bytes"

// NextFrame finds the first complete frame in buf. Bytes before the first
// flag are dropped and runs of flags are treated as idle fill. rest starts
// at the closing flag, which may also open the next frame; when no complete
// frame is present ok is false and rest holds the partial frame, if any.
func NextFrame(buf []byte) (frame, rest []byte, ok bool) {
	start := bytes.IndexByte(buf, Flag)
	for start >= 0 {
		end := bytes.IndexByte(buf[start+1:], Flag)
		if end < 0 {
			return nil, buf[start:], false
		}
		end += start + 1
		if end == start+1 {
			start = end
			continue
		}
		return buf[start : end+1], buf[end:], true
	}
	return nil, nil, false
}

// ScanFrames is a bufio.SplitFunc yielding one raw frame per token.
func ScanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	frame, rest, ok := NextFrame(data)
	if ok {
		return len(data) - len(rest), frame, nil
	}
	if atEOF {
		return len(data), nil, nil
	}
	return len(data) - len(rest), nil, nil
}

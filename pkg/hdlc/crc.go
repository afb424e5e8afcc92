package hdlc

const (
	// Polynomial is the bit-reversed CRC-CCITT polynomial (x^16+x^12+x^5+1).
	Polynomial = 0x8408

	// InitialCRC seeds the checksum of every frame.
	InitialCRC = 0xFFFF
)

// CRC16 runs the reflected CRC-CCITT register over data starting from iv.
// No final XOR is applied, so the result can be fed back in as iv to extend
// the checksum over another buffer, and appending the result low byte first
// to data makes the CRC over the extended buffer zero.
func CRC16(iv uint16, data []byte) uint16 {
	crc := iv
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ Polynomial
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// Checksum is the frame check sequence carried on the wire for payload:
// the complemented CRC16 seeded with InitialCRC (CRC-16/X-25).
func Checksum(payload []byte) uint16 {
	return ^CRC16(InitialCRC, payload)
}

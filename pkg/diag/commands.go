package diag

// DIAG subsystem dispatch request (0x4B) to subsystem 0x65, command 0x0001,
// which reboots the modem into Emergency Download mode. A device that
// accepts it echoes the request header back.
var (
	edlCommand = []byte{0x4B, 0x65, 0x01, 0x00}
	edlAck     = []byte{0x4B, 0x65, 0x01, 0x00}
)

// EDLCommand returns a copy of the default switch-to-EDL payload.
func EDLCommand() []byte {
	return append([]byte(nil), edlCommand...)
}

// EDLAck returns a copy of the acknowledgment expected for EDLCommand.
func EDLAck() []byte {
	return append([]byte(nil), edlAck...)
}

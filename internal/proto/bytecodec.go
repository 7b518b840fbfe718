// Package proto implements the protocol engine: pure byte/CRC codecs,
// the single-slot Event latch, the Ser PDU codec and its (ds,page)
// schedule, and the Transp RTU framing state machines, wired together
// by Gateway. Modeled on the industrial Modbus RTU node's big-endian
// register codec in the reference pack, generalized from fixed
// register reads to the dataset/page/subscription/answer shapes this
// wire protocol actually uses.
package proto

// PackU16BE writes v into dst as [high, low]. dst must have length >= 2.
func PackU16BE(dst []byte, v uint16) {
	dst[0] = byte(v >> 8)
	dst[1] = byte(v)
}

// UnpackU16BE reads a big-endian u16 from src. src must have length >= 2.
func UnpackU16BE(src []byte) uint16 {
	return uint16(src[0])<<8 | uint16(src[1])
}

// PackU16LE writes v into dst as [low, high]. Used only for the
// CRC_MODBUS trailer, never for PDU fields (spec §4.1/§4.2).
func PackU16LE(dst []byte, v uint16) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
}

// UnpackU16LE reads a little-endian u16 from src.
func UnpackU16LE(src []byte) uint16 {
	return uint16(src[0]) | uint16(src[1])<<8
}

// PackU32BE writes v into dst as four big-endian bytes. dst must have
// length >= 4.
func PackU32BE(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}

// UnpackU32BE reads a big-endian u32 from src.
func UnpackU32BE(src []byte) uint32 {
	return uint32(src[0])<<24 | uint32(src[1])<<16 | uint32(src[2])<<8 | uint32(src[3])
}

// PackI16BE and UnpackI16BE move a signed 16-bit value using the same
// big-endian byte order as PackU16BE/UnpackU16BE (two's complement,
// no sign-magnitude games).
func PackI16BE(dst []byte, v int16) {
	PackU16BE(dst, uint16(v))
}

func UnpackI16BE(src []byte) int16 {
	return int16(UnpackU16BE(src))
}

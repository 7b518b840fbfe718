package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackUnpackU16BE(t *testing.T) {
	tests := []struct {
		name string
		in   uint16
	}{
		{"zero", 0},
		{"max", 0xFFFF},
		{"mixed", 0x1234},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 2)
			PackU16BE(buf, tt.in)
			assert.Equal(t, tt.in, UnpackU16BE(buf))
		})
	}
}

func TestPackU16BE_ByteOrder(t *testing.T) {
	buf := make([]byte, 2)
	PackU16BE(buf, 0x1234)
	assert.Equal(t, byte(0x12), buf[0])
	assert.Equal(t, byte(0x34), buf[1])
}

func TestPackU16LE_ByteOrder(t *testing.T) {
	buf := make([]byte, 2)
	PackU16LE(buf, 0x1234)
	assert.Equal(t, byte(0x34), buf[0])
	assert.Equal(t, byte(0x12), buf[1])
}

func TestPackUnpackU32BE(t *testing.T) {
	buf := make([]byte, 4)
	PackU32BE(buf, 0xDEADBEEF)
	assert.Equal(t, uint32(0xDEADBEEF), UnpackU32BE(buf))
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, buf)
}

func TestPackUnpackI16BE_Negative(t *testing.T) {
	buf := make([]byte, 2)
	PackI16BE(buf, -1)
	assert.Equal(t, []byte{0xFF, 0xFF}, buf)
	assert.Equal(t, int16(-1), UnpackI16BE(buf))
}

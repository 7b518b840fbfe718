package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCRC16_KnownVector cross-checks against the standard Modbus
// CRC-16 vector for the bytes 0x02 0x07 (well known: result 0x1241).
func TestCRC16_KnownVector(t *testing.T) {
	got := CRC16([]byte{0x02, 0x07})
	assert.Equal(t, uint16(0x1241), got)
}

func TestAppendCRC_ModbusOrder(t *testing.T) {
	body := []byte{0x0C, 0x00, 0x00}
	frame := AppendCRC(append([]byte{}, body...), CRCModbus)
	crc := CRC16(body)
	require.Len(t, frame, len(body)+2)
	assert.Equal(t, byte(crc), frame[len(frame)-2], "modbus order: low byte first")
	assert.Equal(t, byte(crc>>8), frame[len(frame)-1])
}

func TestAppendCRC_ReverseOrder(t *testing.T) {
	body := []byte{0x0C, 0x00, 0x00}
	frame := AppendCRC(append([]byte{}, body...), CRCReverse)
	crc := CRC16(body)
	assert.Equal(t, byte(crc>>8), frame[len(frame)-2], "reverse order: high byte first")
	assert.Equal(t, byte(crc), frame[len(frame)-1])
}

// TestCRC16_P2_VerifyAndBitFlip is property P2: for all byte strings
// and either ordering, verify(b||crc(b)) succeeds, and flipping any
// single bit of the extended frame fails verification.
func TestCRC16_P2_VerifyAndBitFlip(t *testing.T) {
	samples := [][]byte{
		{0x01},
		{0x0C, 0x00, 0x00, 0x10},
		{0x0C, 0x00, 0x01, 0x10, 0x00, 0x01, 0x00, 0x02, 0x00, 0x03},
	}
	for _, variant := range []CRCVariant{CRCModbus, CRCReverse} {
		for _, body := range samples {
			frame := AppendCRC(append([]byte{}, body...), variant)
			require.True(t, VerifyCRC(frame, variant))

			for bit := 0; bit < len(frame)*8; bit++ {
				flipped := append([]byte{}, frame...)
				flipped[bit/8] ^= 1 << uint(bit%8)
				assert.False(t, VerifyCRC(flipped, variant),
					"variant=%v body=%v bit=%d should fail verification", variant, body, bit)
			}
		}
	}
}

func TestVerifyCRC_TooShort(t *testing.T) {
	assert.False(t, VerifyCRC([]byte{0x01, 0x02}, CRCModbus))
}

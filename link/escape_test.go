package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscape_AllByteValues(t *testing.T) {
	require := require.New(t)

	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i)
	}

	escaped := Escape(payload)
	require.Len(escaped, 258, "two reserved bytes gain one escape each")
	require.NotContains(escaped, FrameByte)

	decoded, ok := Unescape(escaped)
	require.True(ok)
	require.Equal(payload, decoded)
}

func TestEscape_ReservedBytes(t *testing.T) {
	tests := []struct {
		name string
		in   byte
		want []byte
	}{
		{"frame", FrameByte, []byte{0x7D, 0x5E}},
		{"escape", EscapeByte, []byte{0x7D, 0x5D}},
		{"plain", 0x5E, []byte{0x5E}},
		{"zero", 0x00, []byte{0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AppendEscaped(nil, tt.in))
			assert.Equal(t, tt.in == FrameByte || tt.in == EscapeByte, NeedsEscape(tt.in))
		})
	}
}

func TestUnescape_Malformed(t *testing.T) {
	_, ok := Unescape([]byte{0x01, EscapeByte})
	assert.False(t, ok, "dangling escape")

	_, ok = Unescape([]byte{0x01, FrameByte, 0x02})
	assert.False(t, ok, "bare delimiter")

	out, ok := Unescape(nil)
	assert.True(t, ok)
	assert.Empty(t, out)
}

func TestEncodeFrame(t *testing.T) {
	require := require.New(t)

	payload := []byte{'A', FrameByte, EscapeByte}
	ctrl := DataControl(3, 5)
	frame := EncodeFrame(ctrl, payload)

	require.Equal(FrameByte, frame[0])
	require.Equal(FrameByte, frame[len(frame)-1])

	body, ok := Unescape(frame[1 : len(frame)-1])
	require.True(ok)
	require.Equal(byte(ctrl), body[0])
	require.Equal(payload, body[1:len(body)-2])
	require.True(Checksum(body).Valid())
}

func TestEncodeFrame_AckOnly(t *testing.T) {
	frame := EncodeFrame(AckControl(1, 0), nil)

	lo, hi := Checksum([]byte{0x08}).Trailer()
	want := AppendEscaped(AppendEscaped([]byte{FrameByte, 0x08}, lo), hi)
	want = append(want, FrameByte)
	assert.Equal(t, want, frame)
}

package crc16

import "testing"

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{"check value", []byte("123456789"), 0xE5CC},
		{"empty", nil, Init},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Checksum(tc.data); got != tc.want {
				t.Errorf("Checksum = 0x%04X, want 0x%04X", got, tc.want)
			}
		})
	}
}

func TestDigest_Incremental(t *testing.T) {
	d := New()
	_, _ = d.Write([]byte("1234"))
	_ = d.WriteByte('5')
	d.WriteUint16(0x3637)
	_, _ = d.Write([]byte("89"))

	if d.Sum16() != 0xE5CC {
		t.Errorf("Sum16 = 0x%04X, want 0xE5CC", d.Sum16())
	}
	if d.Len() != 9 {
		t.Errorf("Len = %d, want 9", d.Len())
	}

	d.Reset()
	if d.Sum16() != Init || d.Len() != 0 {
		t.Errorf("Reset left 0x%04X/%d", d.Sum16(), d.Len())
	}
}

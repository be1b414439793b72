package encoder

import (
	"encoding/binary"
	"testing"
)

func TestWavEncoderHeader(t *testing.T) {
	data, err := WavEncoder{}.Encode(tone(100, 440))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) != 44+200 {
		t.Fatalf("payload = %d bytes, want 244", len(data))
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(data[24:]); rate != SampleRate {
		t.Errorf("sample rate in header = %d, want %d", rate, SampleRate)
	}
	if sz := binary.LittleEndian.Uint32(data[40:]); sz != 200 {
		t.Errorf("data chunk size = %d, want 200", sz)
	}
}

func TestWavEncoderClipsOutOfRange(t *testing.T) {
	data, err := WavEncoder{}.Encode([]float32{2.0, -2.0})
	if err != nil {
		t.Fatal(err)
	}
	hi := int16(binary.LittleEndian.Uint16(data[44:]))
	lo := int16(binary.LittleEndian.Uint16(data[46:]))
	if hi != 32767 || lo != -32768 {
		t.Errorf("clipped samples = %d, %d; want 32767, -32768", hi, lo)
	}
}

func TestNewEncoder(t *testing.T) {
	for _, format := range []string{"wav", "flac"} {
		enc, err := New(format)
		if err != nil {
			t.Fatalf("New(%q): %v", format, err)
		}
		if enc.Ext() != format {
			t.Errorf("Ext = %q, want %q", enc.Ext(), format)
		}
	}
	if _, err := New("ogg"); err == nil {
		t.Error("New(ogg) should fail")
	}
}

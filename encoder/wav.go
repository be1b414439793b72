package encoder

import (
	"bytes"
	"encoding/binary"
)

type WavEncoder struct{}

func (WavEncoder) ContentType() string { return "audio/wav" }
func (WavEncoder) Ext() string         { return "wav" }

func (WavEncoder) Encode(samples []float32) ([]byte, error) {
	pcm := toInt16(samples)
	dataSize := len(pcm) * 2

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(SampleRate*Channels*BitsPerSample/8))
	binary.Write(&buf, binary.LittleEndian, uint16(Channels*BitsPerSample/8))
	binary.Write(&buf, binary.LittleEndian, uint16(BitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	binary.Write(&buf, binary.LittleEndian, pcm)

	return buf.Bytes(), nil
}

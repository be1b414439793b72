package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"
)

const fileChunkFrames = 1024

// FileSource replays a recorded 16-bit mono WAV file as if it were
// live capture. With realtime pacing it emits chunks at the file's
// natural rate; otherwise as fast as the consumer pulls them.
type FileSource struct {
	pcm      []byte
	pos      int
	rate     int
	realtime bool
	next     time.Time
}

func NewFileSource(wavPath string, sampleRate int, realtime bool) (*FileSource, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) <= WAVHeaderSize {
		return nil, fmt.Errorf("%s: no audio data", wavPath)
	}
	return &FileSource{
		pcm:      data[WAVHeaderSize:],
		rate:     sampleRate,
		realtime: realtime,
	}, nil
}

func (f *FileSource) ReadChunk(ctx context.Context) ([]float32, error) {
	if f.pos >= len(f.pcm)-1 {
		return nil, io.EOF
	}

	if f.realtime {
		if !f.next.IsZero() {
			select {
			case <-time.After(time.Until(f.next)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		f.next = time.Now().Add(time.Duration(fileChunkFrames) * time.Second / time.Duration(f.rate))
	}

	frames := fileChunkFrames
	if remain := (len(f.pcm) - f.pos) / 2; remain < frames {
		frames = remain
	}
	chunk := make([]float32, frames)
	for i := range chunk {
		chunk[i] = float32(int16(binary.LittleEndian.Uint16(f.pcm[f.pos+i*2:]))) / 32768
	}
	f.pos += frames * 2
	return chunk, nil
}

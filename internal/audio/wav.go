package audio

import (
	"bytes"
	"encoding/binary"
	"time"
)

// Clip is raw captured audio: mono, 16-bit signed little-endian samples.
type Clip struct {
	SampleRate int
	Samples    []byte
}

// Duration is the clip's play time.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	frames := len(c.Samples) / 2
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Empty reports whether the clip holds no samples.
func (c *Clip) Empty() bool { return len(c.Samples) == 0 }

// WAV frames the clip as a standard RIFF/WAVE file (PCM format 1, one
// channel) for the multipart upload.
func (c *Clip) WAV() []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8
	byteRate := c.SampleRate * blockAlign
	dataLen := len(c.Samples)

	var buf bytes.Buffer
	buf.Grow(44 + dataLen)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(c.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(c.Samples)

	return buf.Bytes()
}

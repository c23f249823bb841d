// Package audio captures microphone input for the pronunciation exercise
// and frames it as WAV for upload.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// DefaultSampleRate is what the pronunciation scoring service expects:
// 16 kHz mono, 16-bit signed little-endian samples.
const DefaultSampleRate = 16000

const framesPerBuffer = 1024

// Recorder captures a single clip from the default input device. Start
// begins capture on a background goroutine; Stop ends it and returns the
// recorded clip. A Recorder records one clip at a time.
type Recorder struct {
	sampleRate int

	mu        sync.Mutex
	stream    *portaudio.Stream
	in        []int16
	buf       bytes.Buffer
	recording bool
	done      chan struct{}
}

// NewRecorder initializes the audio subsystem. sampleRate zero means
// DefaultSampleRate. Callers must Close the Recorder to release the device.
func NewRecorder(sampleRate int) (*Recorder, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize audio: %w", err)
	}
	return &Recorder{sampleRate: sampleRate}, nil
}

// Start opens the input stream and begins capturing.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return fmt.Errorf("recording already in progress")
	}

	r.in = make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.sampleRate), framesPerBuffer, r.in)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}

	r.stream = stream
	r.buf.Reset()
	r.recording = true
	r.done = make(chan struct{})
	go r.capture(stream, r.done)
	return nil
}

func (r *Recorder) capture(stream *portaudio.Stream, done chan struct{}) {
	defer close(done)
	for {
		r.mu.Lock()
		if !r.recording || r.stream != stream {
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()

		if err := stream.Read(); err != nil {
			// Overflows happen when the UI stalls; keep what arrived.
			continue
		}

		r.mu.Lock()
		binary.Write(&r.buf, binary.LittleEndian, r.in)
		r.mu.Unlock()
	}
}

// Stop ends capture and returns the recorded clip. Stopping an idle
// recorder returns an empty clip.
func (r *Recorder) Stop() (*Clip, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return &Clip{SampleRate: r.sampleRate}, nil
	}
	r.recording = false
	stream := r.stream
	r.stream = nil
	done := r.done
	r.mu.Unlock()

	<-done
	stream.Stop()
	if err := stream.Close(); err != nil {
		return nil, fmt.Errorf("close input stream: %w", err)
	}

	r.mu.Lock()
	samples := make([]byte, r.buf.Len())
	copy(samples, r.buf.Bytes())
	r.buf.Reset()
	r.mu.Unlock()

	return &Clip{SampleRate: r.sampleRate, Samples: samples}, nil
}

// Close releases the audio subsystem. Any in-progress recording is
// discarded.
func (r *Recorder) Close() error {
	r.mu.Lock()
	stream := r.stream
	done := r.done
	wasRecording := r.recording
	r.recording = false
	r.stream = nil
	r.mu.Unlock()

	if wasRecording {
		<-done
		stream.Stop()
		stream.Close()
	}
	return portaudio.Terminate()
}

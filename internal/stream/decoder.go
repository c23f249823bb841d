package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// recordPrefix marks lines that carry an event record. Anything else on the
// stream (blank keep-alive lines, comment padding) is ignored.
const recordPrefix = "data:"

// readChunkSize is the read granularity; records are small, so modest
// buffers keep latency low without churning allocations.
const readChunkSize = 4096

// record is the wire shape of one event payload. Pointer fields distinguish
// absent from zero-valued.
type record struct {
	Chunk    *string `json:"chunk"`
	Done     *bool   `json:"done"`
	Error    *string `json:"error"`
	TestType *string `json:"test_type"`
}

// Decoder turns a raw chat-response body into a sequence of typed events.
// A Decoder is single-use: Events may be iterated once per open stream.
type Decoder struct {
	r   io.Reader
	log *logrus.Entry

	// pending buffers a partial trailing line until the remainder arrives.
	// A record split across two reads must not be parsed early.
	pending []byte
	done    bool
}

// NewDecoder wraps a stream body. The logger records swallowed malformed
// lines; a corrupt record must not abort the stream.
func NewDecoder(r io.Reader, log *logrus.Entry) *Decoder {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Decoder{r: r, log: log}
}

// Events returns a one-shot iterator over the stream's typed events.
// Iteration ends on a done sentinel, an in-band error event, a read error,
// or EOF. On an error event or read error the stream is abandoned: no
// further lines are processed.
func (d *Decoder) Events(ctx context.Context) func(yield func(Event, error) bool) {
	return func(yield func(Event, error) bool) {
		if d.done {
			return
		}
		defer func() { d.done = true }()

		buf := make([]byte, readChunkSize)
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			n, readErr := d.r.Read(buf)
			if n > 0 {
				d.pending = append(d.pending, buf[:n]...)
				for {
					idx := bytes.IndexByte(d.pending, '\n')
					if idx < 0 {
						break
					}
					line := string(d.pending[:idx])
					d.pending = d.pending[idx+1:]
					if stop, ok := d.emitLine(line, yield); !ok || stop {
						return
					}
				}
			}

			if readErr == io.EOF {
				// A final record without a trailing newline is complete once
				// the stream ends.
				if len(d.pending) > 0 {
					line := string(d.pending)
					d.pending = nil
					if stop, ok := d.emitLine(line, yield); !ok || stop {
						return
					}
				}
				return
			}
			if readErr != nil {
				yield(nil, readErr)
				return
			}
		}
	}
}

// emitLine parses one line and yields its events. The first return reports
// whether the stream is finished (done or error record); the second is the
// yield continuation flag.
func (d *Decoder) emitLine(line string, yield func(Event, error) bool) (stop, ok bool) {
	line = strings.TrimRight(line, "\r")
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, recordPrefix) {
		return false, true
	}
	payload := strings.TrimSpace(strings.TrimPrefix(trimmed, recordPrefix))
	if payload == "" {
		return false, true
	}

	var rec record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		d.log.WithField("line", truncate(payload, 120)).
			WithError(err).Warn("skipping malformed event record")
		return false, true
	}

	if rec.Error != nil {
		return true, yield(ErrorEvent{Message: *rec.Error}, nil)
	}
	if rec.TestType != nil && *rec.TestType != "" {
		if !yield(QuizSignalEvent{TestType: *rec.TestType}, nil) {
			return false, false
		}
	}
	if rec.Chunk != nil && *rec.Chunk != "" {
		if !yield(ChunkEvent{Text: *rec.Chunk}, nil) {
			return false, false
		}
	}
	if rec.Done != nil && *rec.Done {
		return true, yield(DoneEvent{}, nil)
	}
	return false, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

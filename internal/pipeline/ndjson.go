package pipeline

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// ContentTypeNDJSON is the media type of streamed summaries.
const ContentTypeNDJSON = "application/x-ndjson"

type ndjsonStream struct {
	r      *bufio.Reader
	closer io.Closer
	cur    Chunk
	err    error
	line   int
	done   bool
}

// NewNDJSONStream decodes one JSON chunk per line from r. Blank lines are
// skipped; a trailing line without a newline is decoded at EOF. A line that
// is not valid JSON ends the stream with an error.
func NewNDJSONStream(r io.ReadCloser) Stream {
	return &ndjsonStream{r: bufio.NewReader(r), closer: r}
}

func (s *ndjsonStream) Next() bool {
	if s.done {
		return false
	}

	for {
		raw, err := s.r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			s.err = fmt.Errorf("read stream: %w", err)
			s.done = true
			return false
		}
		eof := errors.Is(err, io.EOF)

		line := bytes.TrimSpace(raw)
		if len(line) > 0 {
			s.line++
			var c Chunk
			if jerr := json.Unmarshal(line, &c); jerr != nil {
				s.err = fmt.Errorf("decode stream line %d: %w", s.line, jerr)
				s.done = true
				return false
			}
			s.cur = c
			if eof {
				s.done = true
			}
			return true
		}

		if eof {
			s.done = true
			return false
		}
	}
}

func (s *ndjsonStream) Chunk() Chunk { return s.cur }
func (s *ndjsonStream) Err() error   { return s.err }

func (s *ndjsonStream) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Encoder writes chunks as newline-delimited JSON, flushing after each line
// when the writer supports it.
type Encoder struct {
	mu  sync.Mutex
	enc *json.Encoder
	f   http.Flusher
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{enc: json.NewEncoder(w)}
	if f, ok := w.(http.Flusher); ok {
		e.f = f
	}
	return e
}

// Encode writes c followed by a newline.
func (e *Encoder) Encode(c Chunk) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.enc.Encode(c); err != nil {
		return err
	}
	if e.f != nil {
		e.f.Flush()
	}
	return nil
}

// Collect drains s, returning the concatenated deltas and the bullets from the
// done chunk, if any. onDelta, when non-nil, sees the accumulated text after
// every non-empty delta. An error chunk is returned as a *StreamError and an
// unrecognised chunk type ends the stream with an error.
func Collect(s Stream, onDelta func(text string)) (string, []string, error) {
	defer s.Close()

	var (
		text      strings.Builder
		summaries []string
	)
	for s.Next() {
		c := s.Chunk()
		switch c.Type {
		case ChunkDelta:
			if c.Content == "" {
				continue
			}
			text.WriteString(c.Content)
			if onDelta != nil {
				onDelta(text.String())
			}
		case ChunkDone:
			summaries = c.Summaries
		case ChunkError:
			return text.String(), nil, &StreamError{Code: c.Error, Message: c.Message}
		default:
			return text.String(), nil, fmt.Errorf("unknown chunk type %q", c.Type)
		}
	}
	if err := s.Err(); err != nil {
		return text.String(), nil, err
	}

	return text.String(), summaries, nil
}

// StreamError is an error reported in-band by the summary stream.
type StreamError struct {
	Code    string
	Message string
}

func (e *StreamError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

package pipeline

// ChunkType identifies a streamed summary fragment.
type ChunkType string

// Chunk types.
const (
	ChunkDelta ChunkType = "delta"
	ChunkDone  ChunkType = "done"
	ChunkError ChunkType = "error"
)

// Chunk is one line of a streamed summary.
type Chunk struct {
	Type      ChunkType `json:"type"`
	Content   string    `json:"content,omitempty"`
	Summaries []string  `json:"summaries,omitempty"`
	Error     string    `json:"error,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Delta returns a text fragment chunk.
func Delta(content string) Chunk {
	return Chunk{Type: ChunkDelta, Content: content}
}

// Done returns the terminal chunk carrying the final bullet list.
func Done(summaries []string) Chunk {
	return Chunk{Type: ChunkDone, Summaries: summaries}
}

// ErrorChunk returns a terminal error chunk.
func ErrorChunk(code, message string) Chunk {
	return Chunk{Type: ChunkError, Error: code, Message: message}
}

// Stream yields summary chunks in order.
//
//	for s.Next() {
//		c := s.Chunk()
//	}
//	if err := s.Err(); err != nil { ... }
type Stream interface {
	Next() bool
	Chunk() Chunk
	Err() error
	Close() error
}

// SliceStream is a Stream over a fixed list of chunks.
type SliceStream struct {
	chunks []Chunk
	pos    int
}

// NewSliceStream returns a Stream that yields chunks in order.
func NewSliceStream(chunks ...Chunk) *SliceStream {
	return &SliceStream{chunks: chunks}
}

func (s *SliceStream) Next() bool {
	if s.pos >= len(s.chunks) {
		return false
	}
	s.pos++
	return true
}

func (s *SliceStream) Chunk() Chunk {
	if s.pos == 0 {
		return Chunk{}
	}
	return s.chunks[s.pos-1]
}

func (s *SliceStream) Err() error   { return nil }
func (s *SliceStream) Close() error { return nil }

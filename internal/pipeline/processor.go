package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vispark/vispark-api/internal/errs"
)

// Status is the processing state of a video.
type Status string

// Processing states.
const (
	StatusIdle        Status = "idle"
	StatusGathering   Status = "gathering"
	StatusSummarizing Status = "summarizing"
	StatusComplete    Status = "complete"
	StatusError       Status = "error"
)

// Phase names the step that failed.
type Phase string

// Failure phases.
const (
	PhaseTranscript Phase = "transcript"
	PhaseSummary    Phase = "summary"
	PhaseSave       Phase = "save"
)

var transitions = map[Status][]Status{
	StatusIdle:        {StatusGathering},
	StatusGathering:   {StatusSummarizing, StatusError},
	StatusSummarizing: {StatusComplete, StatusError},
	StatusComplete:    {StatusIdle},
	StatusError:       {StatusIdle},
}

// ErrIllegalTransition is returned when a state change is not allowed.
var ErrIllegalTransition = errors.New("illegal state transition")

// ErrEmptyTranscript is returned when the transcript source yields no text.
var ErrEmptyTranscript = fmt.Errorf("%w: transcript is empty", errs.ErrNotFound)

// ErrEmptySummary is returned when the summarizer yields no text.
var ErrEmptySummary = fmt.Errorf("%w: summary is empty", errs.ErrUpstream)

// CanTransition reports whether from -> to is a legal state change.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PhaseError wraps the cause of a failed run with the phase it failed in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// SummaryRequest is the input to a SummaryStreamer.
type SummaryRequest struct {
	VideoID    string
	Title      string
	Transcript string
	Language   string
}

// Result is what a completed run produced.
type Result struct {
	VideoID    string
	Transcript string
	Summary    string
	Summaries  []string
}

// TranscriptFetcher returns the transcript text of a video.
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, videoID, language string) (string, error)
}

// SummaryStreamer starts a streamed summary of a transcript.
type SummaryStreamer interface {
	StreamSummary(ctx context.Context, req SummaryRequest) (Stream, error)
}

// Recorder persists a completed result.
type Recorder interface {
	Record(ctx context.Context, res *Result) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, res *Result) error

func (f RecorderFunc) Record(ctx context.Context, res *Result) error { return f(ctx, res) }

// Snapshot is a point-in-time copy of a Processor's state.
type Snapshot struct {
	Status      Status    `json:"status"`
	VideoID     string    `json:"videoId,omitempty"`
	Transcript  string    `json:"-"`
	SummaryText string    `json:"summaryText,omitempty"`
	Summaries   []string  `json:"summaries,omitempty"`
	FailedPhase Phase     `json:"failedPhase,omitempty"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Option configures a Processor.
type Option func(*Processor)

// WithObserver registers fn to receive a Snapshot after every state change
// and every streamed chunk. fn is called synchronously and must not call
// back into the Processor.
func WithObserver(fn func(Snapshot)) Option {
	return func(p *Processor) { p.observer = fn }
}

// WithLanguage sets the language passed to the transcript and summary steps.
func WithLanguage(lang string) Option {
	return func(p *Processor) { p.language = lang }
}

// WithTitle sets the video title passed to the summarizer.
func WithTitle(title string) Option {
	return func(p *Processor) { p.title = title }
}

// Processor runs videos through the pipeline one at a time.
type Processor struct {
	transcripts TranscriptFetcher
	summarizer  SummaryStreamer
	recorder    Recorder
	observer    func(Snapshot)
	language    string
	title       string

	mu    sync.Mutex
	state Snapshot
}

// New returns an idle Processor. recorder may be nil, in which case the save
// step is skipped.
func New(transcripts TranscriptFetcher, summarizer SummaryStreamer, recorder Recorder, opts ...Option) *Processor {
	p := &Processor{
		transcripts: transcripts,
		summarizer:  summarizer,
		recorder:    recorder,
		state:       Snapshot{Status: StatusIdle, UpdatedAt: time.Now()},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot returns a copy of the current state.
func (p *Processor) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyState()
}

// Reset returns a finished Processor to idle.
func (p *Processor) Reset() error {
	p.mu.Lock()
	if !CanTransition(p.state.Status, StatusIdle) {
		from := p.state.Status
		p.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, StatusIdle)
	}
	p.state = Snapshot{Status: StatusIdle, UpdatedAt: time.Now()}
	snap := p.copyState()
	p.mu.Unlock()

	p.notify(snap)
	return nil
}

// Run processes videoID. The Processor must be idle. On failure the returned
// error is a *PhaseError and the Processor is left in the error state.
func (p *Processor) Run(ctx context.Context, videoID string) (*Result, error) {
	if err := p.start(videoID); err != nil {
		return nil, err
	}

	transcript, err := p.transcripts.FetchTranscript(ctx, videoID, p.language)
	if err == nil && strings.TrimSpace(transcript) == "" {
		err = ErrEmptyTranscript
	}
	if err != nil {
		return nil, p.fail(PhaseTranscript, err)
	}

	if err := p.update(func(s *Snapshot) error {
		s.Transcript = transcript
		return setStatus(s, StatusSummarizing)
	}); err != nil {
		return nil, err
	}

	summary, summaries, err := p.summarize(ctx, SummaryRequest{
		VideoID:    videoID,
		Title:      p.title,
		Transcript: transcript,
		Language:   p.language,
	})
	if err != nil {
		return nil, p.fail(PhaseSummary, err)
	}

	res := &Result{
		VideoID:    videoID,
		Transcript: transcript,
		Summary:    summary,
		Summaries:  summaries,
	}

	if p.recorder != nil {
		if err := p.recorder.Record(ctx, res); err != nil {
			return nil, p.fail(PhaseSave, err)
		}
	}

	if err := p.update(func(s *Snapshot) error {
		s.Summaries = append([]string(nil), summaries...)
		return setStatus(s, StatusComplete)
	}); err != nil {
		return nil, err
	}

	return res, nil
}

func (p *Processor) summarize(ctx context.Context, req SummaryRequest) (string, []string, error) {
	stream, err := p.summarizer.StreamSummary(ctx, req)
	if err != nil {
		return "", nil, err
	}

	summary, summaries, err := Collect(stream, func(text string) {
		_ = p.update(func(s *Snapshot) error {
			s.SummaryText = text
			return nil
		})
	})
	if err != nil {
		return "", nil, err
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	if len(summaries) == 0 {
		summaries = ParseBullets(summary)
	}
	if strings.TrimSpace(summary) == "" && len(summaries) == 0 {
		return "", nil, ErrEmptySummary
	}
	if strings.TrimSpace(summary) == "" {
		summary = FormatBullets(summaries)
	}

	return summary, summaries, nil
}

func (p *Processor) start(videoID string) error {
	return p.update(func(s *Snapshot) error {
		if err := setStatus(s, StatusGathering); err != nil {
			return err
		}
		*s = Snapshot{Status: StatusGathering, VideoID: videoID}
		return nil
	})
}

func (p *Processor) fail(phase Phase, cause error) error {
	perr := &PhaseError{Phase: phase, Err: cause}
	if err := p.update(func(s *Snapshot) error {
		s.FailedPhase = phase
		s.Error = cause.Error()
		return setStatus(s, StatusError)
	}); err != nil {
		return err
	}
	return perr
}

// update applies fn under the lock and notifies the observer if fn succeeded.
func (p *Processor) update(fn func(*Snapshot) error) error {
	p.mu.Lock()
	if err := fn(&p.state); err != nil {
		p.mu.Unlock()
		return err
	}
	p.state.UpdatedAt = time.Now()
	snap := p.copyState()
	p.mu.Unlock()

	p.notify(snap)
	return nil
}

func (p *Processor) notify(s Snapshot) {
	if p.observer != nil {
		p.observer(s)
	}
}

func (p *Processor) copyState() Snapshot {
	s := p.state
	s.Summaries = append([]string(nil), p.state.Summaries...)
	return s
}

func setStatus(s *Snapshot, to Status) error {
	if !CanTransition(s.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.Status, to)
	}
	s.Status = to
	return nil
}

// Package orchestration coordinates the producers behind a live-teaching
// session: streamed explanations, visual cues, narrated audio and emphasis
// markers are merged into a single ordered event stream per question.
package orchestration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/tutor-core/core/events"
)

// ErrEmptyQuestion is returned by Ask when the question is blank.
var ErrEmptyQuestion = errors.New("question must not be empty")

// ErrNoExplanationProducer is returned by Ask when the session has no
// explanation producer configured.
var ErrNoExplanationProducer = errors.New("explanation producer is required")

type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionProcessing SessionState = "processing"
	SessionClosed     SessionState = "closed"
)

// AskRequest carries one question and its delivery preferences.
// IncludeVisual and IncludeAudio gate the optional modalities per question;
// a disabled modality produces no cue and no advisory error even when the
// session has the producer configured.
type AskRequest struct {
	Question    string
	Subject     string
	GradeLevel  string
	Language    string
	VoiceStyle  string
	AvatarStyle string

	IncludeVisual bool
	IncludeAudio  bool
}

// Session is a single student's teaching session. A session answers one
// question at a time; asking while a cycle is in flight fails with a busy
// error rather than queueing.
type Session struct {
	id     string
	config sessionConfig

	mu         sync.Mutex
	state      SessionState
	cycle      *questionCycle
	lastActive time.Time

	closeOnce sync.Once
}

// NewSession creates a session. An empty id gets a generated UUID.
func NewSession(id string, opts ...SessionOption) *Session {
	if id == "" {
		id = uuid.NewString()
	}

	config := defaultSessionConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &Session{
		id:         id,
		config:     config,
		state:      SessionIdle,
		lastActive: time.Now(),
	}
}

func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

func (s *Session) State() SessionState {
	if s == nil {
		return SessionClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActive reports when the session last started or finished a cycle.
func (s *Session) LastActive() time.Time {
	if s == nil {
		return time.Time{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Ask starts a question cycle and returns its event stream. The stream always
// terminates with a complete, cancelled or non-recoverable error event and is
// closed afterwards. ctx cancels the cycle; the terminal event may be lost
// then.
func (s *Session) Ask(ctx context.Context, req AskRequest) (<-chan events.Event, error) {
	if s == nil {
		return nil, &SessionError{Kind: SessionNotFound}
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrEmptyQuestion
	}
	if s.config.explainer == nil {
		return nil, ErrNoExplanationProducer
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case SessionClosed:
		return nil, &SessionError{Kind: SessionClosedErr, SessionID: s.id}
	case SessionProcessing:
		return nil, &SessionError{Kind: SessionBusy, SessionID: s.id}
	}

	cycle := newQuestionCycle(s.id, req, s.config, s.cycleFinished)
	s.cycle = cycle
	s.state = SessionProcessing
	s.lastActive = time.Now()

	go cycle.run(ctx)

	return cycle.out, nil
}

// Cancel aborts the in-flight question, if any. The session is immediately
// ready for the next question; the cancelled cycle unwinds in the background
// and its stream ends with a cancelled error event.
func (s *Session) Cancel() {
	if s == nil {
		return
	}

	s.mu.Lock()
	cycle := s.cycle
	if s.state == SessionProcessing {
		s.state = SessionIdle
		s.cycle = nil
	}
	s.lastActive = time.Now()
	s.mu.Unlock()

	cycle.Cancel()
}

// Close ends the session. Any in-flight cycle is cancelled; subsequent Asks
// fail with a closed error.
func (s *Session) Close() {
	if s == nil {
		return
	}

	s.closeOnce.Do(func() {
		s.mu.Lock()
		cycle := s.cycle
		s.cycle = nil
		s.state = SessionClosed
		s.mu.Unlock()

		cycle.Cancel()
	})
}

func (s *Session) cycleFinished(cycle *questionCycle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cycle == cycle {
		s.cycle = nil
		if s.state == SessionProcessing {
			s.state = SessionIdle
		}
	}
	s.lastActive = time.Now()
}

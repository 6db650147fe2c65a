package orchestration

import (
	"context"
	"sync"
	"time"

	"github.com/koscakluka/tutor-core/core/events"
)

const defaultSweepInterval = time.Minute

// Registry tracks live sessions by id and reaps the ones that have gone idle
// for too long. Sessions in the middle of a question are never reaped.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	sessionOpts   []SessionOption
	idleTimeout   time.Duration
	sweepInterval time.Duration

	closed    chan struct{}
	closeOnce sync.Once
}

type RegistryOption func(*Registry)

// WithSessionDefaults applies opts to every session the registry creates.
func WithSessionDefaults(opts ...SessionOption) RegistryOption {
	return func(r *Registry) {
		r.sessionOpts = append(r.sessionOpts, opts...)
	}
}

// WithIdleTimeout enables reaping of sessions idle longer than timeout.
// Zero disables reaping.
func WithIdleTimeout(timeout time.Duration) RegistryOption {
	return func(r *Registry) {
		r.idleTimeout = timeout
	}
}

func WithSweepInterval(interval time.Duration) RegistryOption {
	return func(r *Registry) {
		if interval > 0 {
			r.sweepInterval = interval
		}
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions:      map[string]*Session{},
		sweepInterval: defaultSweepInterval,
		closed:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.idleTimeout > 0 {
		go r.sweepLoop()
	}

	return r
}

// Create registers a new session. An empty id gets a generated UUID; an id
// already in use fails with a duplicate error.
func (r *Registry) Create(id string) (*Session, error) {
	session := NewSession(id, r.sessionOpts...)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID()]; exists {
		return nil, &SessionError{Kind: SessionDuplicate, SessionID: session.ID()}
	}
	r.sessions[session.ID()] = session

	logger.Debug("session created", "session_id", session.ID())
	return session, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, &SessionError{Kind: SessionNotFound, SessionID: id}
	}
	return session, nil
}

// GetOrCreate returns the session with the given id, creating it if needed.
func (r *Registry) GetOrCreate(id string) (*Session, error) {
	if id == "" {
		return r.Create("")
	}

	if session, err := r.Get(id); err == nil {
		return session, nil
	}
	session, err := r.Create(id)
	if err != nil {
		// lost the race to a concurrent creator
		return r.Get(id)
	}
	return session, err
}

// Remove closes the session and forgets it. Unknown ids are a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	session := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	session.Close()
}

// Ask routes a question to the session with the given id.
func (r *Registry) Ask(ctx context.Context, id string, req AskRequest) (<-chan events.Event, error) {
	session, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return session.Ask(ctx, req)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// Close stops the sweeper and closes every session.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.closed)

		r.mu.Lock()
		sessions := make([]*Session, 0, len(r.sessions))
		for _, session := range r.sessions {
			sessions = append(sessions, session)
		}
		r.sessions = map[string]*Session{}
		r.mu.Unlock()

		for _, session := range sessions {
			session.Close()
		}
	})
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.closed:
			return
		case <-ticker.C:
			r.sweep(time.Now())
		}
	}
}

func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	var expired []*Session
	for id, session := range r.sessions {
		if session.State() == SessionProcessing {
			continue
		}
		if now.Sub(session.LastActive()) >= r.idleTimeout {
			expired = append(expired, session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, session := range expired {
		logger.Debug("reaping idle session", "session_id", session.ID())
		session.Close()
	}
}

// Package session hosts concurrent flow runs, each with its own wizard,
// dispatcher and cancellation scope.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alkime/onboard/internal/flow"
	"github.com/alkime/onboard/internal/speech"
	"github.com/alkime/onboard/internal/store"
	"github.com/alkime/onboard/internal/voice"
	"github.com/alkime/onboard/internal/wizard"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrNotFound is returned for unknown or disposed session ids.
	ErrNotFound = errors.New("session not found")
	// ErrUserRequired is returned when a session is created without a user id.
	ErrUserRequired = errors.New("user id is required")
)

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "onboard_sessions_active",
	Help: "Flow sessions currently held by the registry.",
})

// Session is one run of a flow for one user.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	Flow      flow.Definition

	Wizard     *wizard.Controller
	Dispatcher *voice.Dispatcher
	Prompts    *speech.PromptLog

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	route string
}

var _ voice.Navigator = (*Session)(nil)

// Navigate records the route the flow was left for.
func (s *Session) Navigate(_ context.Context, route string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.route = route

	return nil
}

// Route returns the route the flow was left for, or "" while still in the flow.
func (s *Session) Route() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.route
}

// Dispatch handles a transcript within the session's lifetime. Disposing the
// session interrupts a running handler.
func (s *Session) Dispatch(transcript string) (voice.Outcome, error) {
	return s.Dispatcher.Dispatch(s.ctx, transcript)
}

// Done is closed when the session is disposed.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Options configures the sessions a Registry creates.
type Options struct {
	Gateway    store.Gateway
	ThinkDelay time.Duration
	Keywords   *voice.Keywords
	Logger     *slog.Logger
}

// Registry creates, looks up and disposes sessions. It is safe for
// concurrent use.
type Registry struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Registry{
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session for userID at the first step of def.
func (r *Registry) Create(def flow.Definition, userID string) (*Session, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		ID:        id.String(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		Flow:      def,
		Wizard:    wizard.New(def),
		Prompts:   &speech.PromptLog{},
		ctx:       ctx,
		cancel:    cancel,
	}

	sess.Dispatcher = voice.NewDispatcher(def, sess.Wizard, voice.Options{
		Speaker:    sess.Prompts,
		Gateway:    r.opts.Gateway,
		Navigator:  sess,
		UserID:     userID,
		ThinkDelay: r.opts.ThinkDelay,
		Keywords:   r.opts.Keywords,
		Logger:     r.opts.Logger.With("session", sess.ID),
	})

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()

	activeSessions.Inc()
	r.opts.Logger.Info("session created", "session", sess.ID, "flow", def.ID, "user", userID)

	return sess, nil
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}

	return sess, nil
}

// Dispose cancels the session and forgets it.
func (r *Registry) Dispose(id string) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	sess.cancel()
	activeSessions.Dec()
	r.opts.Logger.Info("session disposed", "session", id)

	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Close disposes every session.
func (r *Registry) Close() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		_ = r.Dispose(id)
	}
}

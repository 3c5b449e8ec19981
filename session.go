package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orian/querybuilder/models"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for unknown or closed session ids.
var ErrSessionNotFound = errors.New("session not found")

// Session is the query state of one query builder page view. Dispatches
// are serialized so every action is a single atomic transition.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu    sync.Mutex
	state models.QueryState
}

// State returns the current snapshot.
func (s *Session) State() models.QueryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a to the session state and returns the new snapshot.
// On error the state is left as it was.
func (s *Session) Dispatch(a models.Action) (models.QueryState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := models.Reduce(s.state, a)
	if err != nil {
		return s.state, err
	}
	s.state = next
	return next, nil
}

// SessionManager owns all open sessions and the request submissions they
// started.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	defaultURL string
	submitter  *Submitter
	storage    models.Storage
	metrics    *Metrics
	logger     *zap.Logger

	// ctx outlives the HTTP request that started a submission.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSessionManager creates a manager whose new sessions point at
// defaultURL. storage and metrics may be nil.
func NewSessionManager(defaultURL string, submitter *Submitter, storage models.Storage, metrics *Metrics, logger *zap.Logger) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		sessions:   make(map[string]*Session),
		defaultURL: defaultURL,
		submitter:  submitter,
		storage:    storage,
		metrics:    metrics,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Create opens a session with the initial query state.
func (m *SessionManager) Create() (*Session, error) {
	state, err := models.NewQueryStateFor(m.defaultURL)
	if err != nil {
		return nil, err
	}
	session := &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		state:     state,
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	m.metrics.sessionOpened()
	m.logger.Debug("session opened", zap.String("session", session.ID))
	return session, nil
}

// Get returns the session with the given id.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Close discards a session. Submissions it started still complete and
// are logged, their results are dropped with the session.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	m.metrics.sessionClosed()
	m.logger.Debug("session closed", zap.String("session", id))
	return nil
}

// Len returns the number of open sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Dispatch applies an action to the session and records it in metrics.
func (m *SessionManager) Dispatch(session *Session, a models.Action) (models.QueryState, error) {
	state, err := session.Dispatch(a)
	m.metrics.observeAction(models.ActionKind(a), err)
	if err != nil {
		m.logger.Debug("action rejected",
			zap.String("session", session.ID),
			zap.String("kind", models.ActionKind(a)),
			zap.Error(err),
		)
	}
	return state, err
}

// Send submits the session's current request in the background and
// returns the snapshot with the loading flag set. The response is
// delivered later as a SetHTTP action. A second Send before the first
// completes is allowed; whichever response arrives last wins.
func (m *SessionManager) Send(session *Session) (models.QueryState, error) {
	state, err := m.Dispatch(session, models.SetHTTP{HTTP: models.HTTPState{Loading: true}})
	if err != nil {
		return state, err
	}
	request := state.Request

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		result := m.submitter.Submit(m.ctx, request)
		m.metrics.observeSubmission(result.Outcome, result.Duration)
		if _, err := m.Dispatch(session, models.SetHTTP{HTTP: result.HTTP}); err != nil {
			m.logger.Error("failed to store response", zap.String("session", session.ID), zap.Error(err))
		}
		m.record(request, result)
	}()
	return state, nil
}

func (m *SessionManager) record(request models.Request, result Submission) {
	if m.storage == nil {
		return
	}
	entry := &models.LogEntry{
		ID:         generateID(),
		Method:     request.Method,
		URL:        request.URL,
		FullURL:    request.FullURL,
		Status:     result.HTTP.Status,
		Response:   result.HTTP.Response,
		Error:      result.HTTP.Error,
		DurationMs: result.Duration.Milliseconds(),
		Timestamp:  time.Now(),
	}
	if request.Body != nil {
		entry.Body = *request.Body
	}
	if err := m.storage.SaveEntry(entry); err != nil {
		m.logger.Warn("failed to save request log entry", zap.Error(err))
	}
}

// Wait blocks until all submissions in flight have completed.
func (m *SessionManager) Wait() {
	m.wg.Wait()
}

// Shutdown cancels submissions in flight and waits for them to finish.
func (m *SessionManager) Shutdown() {
	m.cancel()
	m.wg.Wait()
	m.submitter.Close()
}

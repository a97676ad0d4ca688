package progress

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voicelab/auris/core"
	"github.com/voicelab/auris/core/program"
)

// fakeClock hands out a controllable instant.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

var _ core.Clock = (*fakeClock)(nil)

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeDB satisfies core.DB with inert executors so services backed by an
// in-memory repository can still run their transactional paths.
type (
	fakeDB struct{}
	fakeTx struct{}
)

var (
	_ core.DB           = (*fakeDB)(nil)
	_ core.DBTransactor = (*fakeTx)(nil)
)

func (fakeDB) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (fakeDB) NamedExecContext(context.Context, string, interface{}) (sql.Result, error) {
	return nil, nil
}
func (fakeDB) GetContext(context.Context, interface{}, string, ...interface{}) error    { return nil }
func (fakeDB) SelectContext(context.Context, interface{}, string, ...interface{}) error { return nil }
func (fakeDB) BeginTxx(context.Context, *sql.TxOptions) (core.DBTransactor, error) {
	return fakeTx{}, nil
}

func (fakeTx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (fakeTx) NamedExecContext(context.Context, string, interface{}) (sql.Result, error) {
	return nil, nil
}
func (fakeTx) GetContext(context.Context, interface{}, string, ...interface{}) error    { return nil }
func (fakeTx) SelectContext(context.Context, interface{}, string, ...interface{}) error { return nil }
func (fakeTx) Commit() error                                                            { return nil }
func (fakeTx) Rollback() error                                                          { return nil }

// memRepo is an in-memory Repository for tests.
type memRepo struct {
	mu       sync.Mutex
	byUser   map[string]UserProgress
	sessions map[string][]Session // keyed by progress ID
}

var _ Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		byUser:   make(map[string]UserProgress),
		sessions: make(map[string][]Session),
	}
}

func (r *memRepo) GetUserProgress(_ context.Context, userID string, _ ...core.DBExecutor) (UserProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	up, ok := r.byUser[userID]
	if !ok {
		return UserProgress{}, ErrNotFound
	}
	up.Sessions = append([]Session(nil), r.sessions[up.ID]...)
	return up, nil
}

func (r *memRepo) CreateUserProgress(_ context.Context, up *UserProgress, _ ...core.DBExecutor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	up.ID = uuid.New().String()
	stored := *up
	stored.Sessions = nil
	r.byUser[up.UserID] = stored
	return nil
}

func (r *memRepo) UpdateUserProgress(_ context.Context, up *UserProgress, _ ...core.DBExecutor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *up
	stored.Sessions = nil
	r.byUser[up.UserID] = stored
	return nil
}

func (r *memRepo) CreateSession(_ context.Context, progressID string, position int, sess *Session, _ ...core.DBExecutor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess.ID = uuid.New().String()
	if got := len(r.sessions[progressID]) + 1; got != position {
		return ErrNotFound
	}
	r.sessions[progressID] = append(r.sessions[progressID], *sess)
	return nil
}

func (r *memRepo) UpdateSession(_ context.Context, progressID string, position int, sess *Session, _ ...core.DBExecutor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := r.sessions[progressID]
	if position < 1 || position > len(sessions) {
		return ErrNotFound
	}
	sessions[position-1] = *sess
	return nil
}

func (r *memRepo) DeleteSessions(_ context.Context, progressID string, _ ...core.DBExecutor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, progressID)
	return nil
}

func (r *memRepo) QueryExpired(_ context.Context, now time.Time, _ ...core.DBExecutor) ([]UserRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var refs []UserRef
	for _, up := range r.byUser {
		if up.Status != StatusReady && up.Status != StatusWaiting {
			continue
		}
		due := up.NextDueDate != nil && now.After(*up.NextDueDate)
		timeout := up.TimeoutEndDate != nil && now.After(*up.TimeoutEndDate)
		if due || timeout {
			refs = append(refs, UserRef{ProgressID: up.ID, UserID: up.UserID})
		}
	}
	return refs, nil
}

// stubPrograms serves a single fixed program.
type stubPrograms struct {
	prog program.Program
}

var _ ProgramLookup = (*stubPrograms)(nil)

func (s stubPrograms) GetByID(_ context.Context, id string) (program.Program, error) {
	if id != s.prog.ID {
		return program.Program{}, program.ErrNotFound
	}
	return s.prog, nil
}

// recorderEmailService captures outbound emails.
type recorderEmailService struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

var _ core.EmailService = (*recorderEmailService)(nil)

func (svc *recorderEmailService) SendMessages(messages ...*core.EmailMessage) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.sent = append(svc.sent, messages...)
}

func (svc *recorderEmailService) Sent() []*core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]*core.EmailMessage(nil), svc.sent...)
}

type queuedReminder struct {
	msg        *core.EmailMessage
	sendAt     time.Time
	progressID string
}

// recorderScheduler captures reminder enqueues.
type recorderScheduler struct {
	mu     sync.Mutex
	queued []queuedReminder
}

var _ core.EmailScheduler = (*recorderScheduler)(nil)

func (s *recorderScheduler) Enqueue(_ context.Context, msg *core.EmailMessage, sendAt time.Time, progressID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = append(s.queued, queuedReminder{msg: msg, sendAt: sendAt, progressID: progressID})
	return nil
}

func (s *recorderScheduler) Queued() []queuedReminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]queuedReminder(nil), s.queued...)
}

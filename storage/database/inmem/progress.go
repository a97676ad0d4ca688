package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voicelab/auris/core"
	"github.com/voicelab/auris/core/progress"
)

type progressRepository struct {
	mu       sync.RWMutex
	byUser   map[string]progress.UserProgress
	sessions map[string][]progress.Session // keyed by progress ID
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository() *progressRepository {
	return &progressRepository{
		byUser:   make(map[string]progress.UserProgress),
		sessions: make(map[string][]progress.Session),
	}
}

func (repo *progressRepository) GetUserProgress(_ context.Context, userID string, _ ...core.DBExecutor) (progress.UserProgress, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	up, ok := repo.byUser[userID]
	if !ok {
		return progress.UserProgress{}, progress.ErrNotFound
	}
	up.Sessions = append([]progress.Session(nil), repo.sessions[up.ID]...)
	return up, nil
}

func (repo *progressRepository) CreateUserProgress(_ context.Context, up *progress.UserProgress, _ ...core.DBExecutor) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if up.ID == "" {
		up.ID = uuid.New().String()
	}
	stored := *up
	stored.Sessions = nil
	repo.byUser[up.UserID] = stored
	return nil
}

func (repo *progressRepository) UpdateUserProgress(_ context.Context, up *progress.UserProgress, _ ...core.DBExecutor) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, ok := repo.byUser[up.UserID]; !ok {
		return progress.ErrNotFound
	}
	stored := *up
	stored.Sessions = nil
	repo.byUser[up.UserID] = stored
	return nil
}

func (repo *progressRepository) CreateSession(_ context.Context, progressID string, position int, sess *progress.Session, _ ...core.DBExecutor) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if len(repo.sessions[progressID])+1 != position {
		return progress.ErrNotFound
	}
	repo.sessions[progressID] = append(repo.sessions[progressID], *sess)
	return nil
}

func (repo *progressRepository) UpdateSession(_ context.Context, progressID string, position int, sess *progress.Session, _ ...core.DBExecutor) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	sessions := repo.sessions[progressID]
	if position < 1 || position > len(sessions) {
		return progress.ErrNotFound
	}
	sessions[position-1] = *sess
	return nil
}

func (repo *progressRepository) DeleteSessions(_ context.Context, progressID string, _ ...core.DBExecutor) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	delete(repo.sessions, progressID)
	return nil
}

func (repo *progressRepository) QueryExpired(_ context.Context, now time.Time, _ ...core.DBExecutor) ([]progress.UserRef, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	var refs []progress.UserRef
	for _, up := range repo.byUser {
		switch up.Status {
		case progress.StatusReady, progress.StatusWaiting:
		default:
			continue
		}
		due := up.NextDueDate != nil && now.After(*up.NextDueDate)
		timeout := up.Status == progress.StatusWaiting && up.TimeoutEndDate != nil && now.After(*up.TimeoutEndDate)
		if due || timeout {
			refs = append(refs, progress.UserRef{ProgressID: up.ID, UserID: up.UserID})
		}
	}
	return refs, nil
}

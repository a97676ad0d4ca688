package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voicelab/auris/core"
)

type emailQueueRepository struct {
	mu     sync.Mutex
	emails []core.QueuedEmail

	// timers resolves a progress ID to its current unlock timer, standing in
	// for the join the SQL implementation does.
	timers func(progressID string) *time.Time
}

var _ core.EmailQueueRepository = (*emailQueueRepository)(nil) // interface compliance check

func NewEmailQueueRepository(timers func(progressID string) *time.Time) *emailQueueRepository {
	return &emailQueueRepository{timers: timers}
}

func (repo *emailQueueRepository) CreateQueuedEmail(_ context.Context, qe *core.QueuedEmail, _ ...core.DBExecutor) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if qe.ID == "" {
		qe.ID = uuid.New().String()
	}
	repo.emails = append(repo.emails, *qe)
	return nil
}

func (repo *emailQueueRepository) QueryPendingEmails(_ context.Context, now time.Time, _ ...core.DBExecutor) ([]core.QueuedEmail, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var pending []core.QueuedEmail
	for _, qe := range repo.emails {
		if qe.Stale || qe.ScheduledTime.After(now) {
			continue
		}
		if repo.timers != nil && qe.ProgressID != "" {
			qe.ProgressTimeoutEndDate = repo.timers(qe.ProgressID)
		}
		pending = append(pending, qe)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ScheduledTime.Before(pending[j].ScheduledTime) })
	return pending, nil
}

func (repo *emailQueueRepository) MarkEmailsStale(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	stale := make(map[string]bool, len(ids))
	for _, id := range ids {
		stale[id] = true
	}
	for i := range repo.emails {
		if stale[repo.emails[i].ID] {
			repo.emails[i].Stale = true
		}
	}
	return nil
}

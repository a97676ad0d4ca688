package emailsvc

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/voicelab/auris/core"
)

// queueScheduler stores emails for later delivery by the Dispatcher.
type queueScheduler struct {
	repo  core.EmailQueueRepository
	clock core.Clock
}

var _ core.EmailScheduler = (*queueScheduler)(nil)

func NewQueueScheduler(repo core.EmailQueueRepository, clock core.Clock) *queueScheduler {
	return &queueScheduler{repo: repo, clock: clock}
}

func (s *queueScheduler) Enqueue(ctx context.Context, msg *core.EmailMessage, sendAt time.Time, progressID string) error {
	if len(msg.To) == 0 {
		return errors.New("queued email needs a recipient")
	}
	qe := &core.QueuedEmail{
		To:            msg.To[0],
		Subject:       msg.Subject,
		ScheduledTime: sendAt.UTC(),
		TemplateName:  msg.TemplateName,
		TemplateData:  msg.TemplateData,
		ProgressID:    progressID,
		CreatedAt:     s.clock.Now(),
	}
	return s.repo.CreateQueuedEmail(ctx, qe)
}

// Dispatcher periodically drains the due portion of the email queue. A
// reminder whose progress record has since picked up a new, still-running
// timer is dropped without sending; every processed email is marked stale so
// it is handled exactly once.
type Dispatcher struct {
	repo     core.EmailQueueRepository
	mailSvc  core.EmailService
	clock    core.Clock
	log      core.Logger
	interval time.Duration
}

func NewDispatcher(repo core.EmailQueueRepository, mailSvc core.EmailService, clock core.Clock, log core.Logger, interval time.Duration) *Dispatcher {
	return &Dispatcher{repo: repo, mailSvc: mailSvc, clock: clock, log: log, interval: interval}
}

func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.DispatchDue(ctx); err != nil {
				d.log.Error("dispatching queued emails", "error", err)
			}
		}
	}
}

func (d *Dispatcher) DispatchDue(ctx context.Context) error {
	now := d.clock.Now()
	pending, err := d.repo.QueryPendingEmails(ctx, now)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	ids := make([]string, 0, len(pending))
	var sent int
	for _, qe := range pending {
		if qe.ProgressTimeoutEndDate == nil || !qe.ProgressTimeoutEndDate.After(now) {
			d.mailSvc.SendMessages(&core.EmailMessage{
				To:           []mail.Address{qe.To},
				Subject:      qe.Subject,
				TemplateName: qe.TemplateName,
				TemplateData: qe.TemplateData,
			})
			sent++
		}
		ids = append(ids, qe.ID)
	}
	d.log.Info("email queue drained", "due", len(pending), "sent", sent)
	return d.repo.MarkEmailsStale(ctx, ids)
}

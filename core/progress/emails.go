package progress

import (
	"context"
	"net/mail"
	"time"

	"github.com/voicelab/auris/core"
)

const (
	cooldownTmpl         = "progress-cooldown"
	reminderTmpl         = "progress-reminder"
	programCompletedTmpl = "progress-program-completed"

	cooldownSubject         = "Time to rest your ears"
	reminderSubject         = "Your next step is ready"
	programCompletedSubject = "You completed your training program"
)

type (
	// emailDate is a calendar day plus the hour of day, the granularity the
	// notification templates display.
	emailDate struct {
		Day  string // DD/MM
		Hour int
	}

	cooldownEmailData struct {
		Name  string
		Start emailDate
		End   emailDate
	}

	userEmailData struct {
		Name string
	}
)

func formatEmailDate(t time.Time) emailDate {
	return emailDate{Day: t.Format("02/01"), Hour: t.Hour()}
}

// sendCooldownEmail notifies the actor of the rest period just entered and
// enqueues a reminder for the moment the unlock timer elapses. Both are
// best-effort; a failed notification never rolls back a submission.
func (svc *Service) sendCooldownEmail(ctx context.Context, actor Actor, up UserProgress) {
	if actor.Email == "" || up.TimeoutEndDate == nil || up.NextDueDate == nil {
		return
	}
	addr := mail.Address{Name: actor.Name, Address: actor.Email}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{addr},
		Subject:      cooldownSubject,
		TemplateName: cooldownTmpl,
		TemplateData: cooldownEmailData{
			Name:  actor.Name,
			Start: formatEmailDate(*up.TimeoutEndDate),
			End:   formatEmailDate(*up.NextDueDate),
		},
	})

	reminder := &core.EmailMessage{
		To:           []mail.Address{addr},
		Subject:      reminderSubject,
		TemplateName: reminderTmpl,
		TemplateData: userEmailData{Name: actor.Name},
	}
	if err := svc.mailSched.Enqueue(ctx, reminder, *up.TimeoutEndDate, up.ID); err != nil {
		svc.log.Error("scheduling reminder email", "progress", up.ID, "error", err)
	}
}

func (svc *Service) sendProgramCompletedEmail(actor Actor) {
	if actor.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: actor.Name, Address: actor.Email}},
		Subject:      programCompletedSubject,
		TemplateName: programCompletedTmpl,
		TemplateData: userEmailData{Name: actor.Name},
	})
}

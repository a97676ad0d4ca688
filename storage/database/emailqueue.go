package database

import (
	"context"
	"encoding/json"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/voicelab/auris/core"
)

type emailQueueRepository struct {
	exec core.DBExecutor
}

var _ core.EmailQueueRepository = (*emailQueueRepository)(nil) // interface compliance check

// due emails drain oldest first
var dispatchOrdering = core.DBOrdering{Field: "eq.scheduled_time", Ascending: true}

func NewEmailQueueRepository(exec core.DBExecutor) *emailQueueRepository {
	return &emailQueueRepository{exec: exec}
}

func (repo emailQueueRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo emailQueueRepository) row(qe *core.QueuedEmail) (queuedEmailRow, error) {
	row := queuedEmailRow{
		ID:            qe.ID,
		ToName:        qe.To.Name,
		ToEmail:       qe.To.Address,
		Subject:       qe.Subject,
		ScheduledTime: qe.ScheduledTime.UTC(),
		TemplateName:  qe.TemplateName,
		ProgressID:    null.NewString(qe.ProgressID, qe.ProgressID != ""),
		Stale:         qe.Stale,
		CreatedAt:     qe.CreatedAt.UTC(),
	}
	var err error
	if row.TemplateData, err = packJSON(qe.TemplateData); err != nil {
		return row, err
	}
	return row, nil
}

func (repo emailQueueRepository) unrow(row queuedEmailRow) (core.QueuedEmail, error) {
	qe := core.QueuedEmail{
		ID:                     row.ID,
		To:                     mail.Address{Name: row.ToName, Address: row.ToEmail},
		Subject:                row.Subject,
		ScheduledTime:          row.ScheduledTime,
		TemplateName:           row.TemplateName,
		ProgressID:             row.ProgressID.String,
		Stale:                  row.Stale,
		CreatedAt:              row.CreatedAt,
		ProgressTimeoutEndDate: row.ProgressTimeoutEndDate.Ptr(),
	}
	if row.TemplateData.Valid {
		var data map[string]interface{}
		if err := json.Unmarshal(row.TemplateData.JSON, &data); err != nil {
			return qe, err
		}
		qe.TemplateData = data
	}
	return qe, nil
}

func (repo emailQueueRepository) CreateQueuedEmail(ctx context.Context, qe *core.QueuedEmail, exec ...core.DBExecutor) error {
	if qe.ID == "" {
		qe.ID = uuid.New().String()
	}
	row, err := repo.row(qe)
	if err != nil {
		return errors.Wrap(err, "encoding queued email")
	}
	const q = `
	INSERT INTO email_queue (id, to_name, to_email, subject, scheduled_time, template_name, template_data, progress_id, stale, created_at)
	VALUES (:id, :to_name, :to_email, :subject, :scheduled_time, :template_name, :template_data, :progress_id, :stale, :created_at)`
	if _, err = repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return errors.Wrap(err, "creating queued email")
	}
	return nil
}

func (repo emailQueueRepository) QueryPendingEmails(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]core.QueuedEmail, error) {
	q := `
	SELECT eq.*, up.timeout_end_date AS progress_timeout_end_date
	FROM email_queue eq
	LEFT JOIN user_progress up ON up.id = eq.progress_id
	WHERE eq.stale = false AND eq.scheduled_time <= $1
	ORDER BY ` + dispatchOrdering.String()
	var rows []queuedEmailRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, q, now.UTC()); err != nil {
		return nil, errors.Wrap(err, "querying pending emails")
	}

	emails := make([]core.QueuedEmail, 0, len(rows))
	for _, row := range rows {
		qe, err := repo.unrow(row)
		if err != nil {
			return nil, errors.Wrap(err, "decoding queued email")
		}
		emails = append(emails, qe)
	}
	return emails, nil
}

func (repo emailQueueRepository) MarkEmailsStale(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlxIn(`UPDATE email_queue SET stale = true WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building stale update")
	}
	if _, err = repo.getExec(exec).ExecContext(ctx, q, args...); err != nil {
		return errors.Wrap(err, "marking emails stale")
	}
	return nil
}

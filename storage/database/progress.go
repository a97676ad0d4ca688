package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/voicelab/auris/core"
	"github.com/voicelab/auris/core/program"
	"github.com/voicelab/auris/core/progress"
)

type progressRepository struct {
	exec core.DBExecutor
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

// sessions load in walk order; the last row is the active session
var sessionOrdering = core.DBOrdering{Field: "position", Ascending: true}

func NewProgressRepository(exec core.DBExecutor) *progressRepository {
	return &progressRepository{exec: exec}
}

func (repo progressRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

// trapNoRowsErr maps psql "no rows" err to progress.ErrNotFound
func (repo progressRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return progress.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo progressRepository) row(up *progress.UserProgress) userProgressRow {
	return userProgressRow{
		ID:              up.ID,
		UserID:          up.UserID,
		ProgramID:       up.ProgramID,
		Status:          string(up.Status),
		NextDueDate:     null.TimeFromPtr(up.NextDueDate),
		TimeoutEndDate:  null.TimeFromPtr(up.TimeoutEndDate),
		FavoriteFeature: null.NewString(string(up.FavoriteFeature), up.FavoriteFeature != ""),
		CreatedAt:       up.CreatedAt.UTC(),
		UpdatedAt:       up.UpdatedAt.UTC(),
	}
}

func (repo progressRepository) unrow(row userProgressRow) progress.UserProgress {
	return progress.UserProgress{
		ID:              row.ID,
		UserID:          row.UserID,
		ProgramID:       row.ProgramID,
		Status:          progress.Status(row.Status),
		NextDueDate:     row.NextDueDate.Ptr(),
		TimeoutEndDate:  row.TimeoutEndDate.Ptr(),
		FavoriteFeature: program.Feature(row.FavoriteFeature.String),
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func (repo progressRepository) sessionRow(progressID string, position int, sess *progress.Session) (sessionRow, error) {
	row := sessionRow{
		ID:                        sess.ID,
		ProgressID:                progressID,
		Position:                  position,
		AssessmentStatus:          string(sess.AssessmentStatus),
		TrainingRoughnessStatus:   string(sess.TrainingRoughnessStatus),
		TrainingBreathinessStatus: string(sess.TrainingBreathinessStatus),
		CreatedAt:                 sess.CreatedAt.UTC(),
		UpdatedAt:                 sess.UpdatedAt.UTC(),
	}
	var err error
	if row.AssessmentRoughnessResults, err = packResults(sess.AssessmentRoughnessResults); err != nil {
		return row, err
	}
	if row.AssessmentBreathinessResults, err = packResults(sess.AssessmentBreathinessResults); err != nil {
		return row, err
	}
	if row.TrainingRoughnessResults, err = packResults(sess.TrainingRoughnessResults); err != nil {
		return row, err
	}
	if row.TrainingBreathinessResults, err = packResults(sess.TrainingBreathinessResults); err != nil {
		return row, err
	}
	return row, nil
}

func (repo progressRepository) unrowSession(row sessionRow) (progress.Session, error) {
	sess := progress.Session{
		ID:                        row.ID,
		AssessmentStatus:          progress.Status(row.AssessmentStatus),
		TrainingRoughnessStatus:   progress.Status(row.TrainingRoughnessStatus),
		TrainingBreathinessStatus: progress.Status(row.TrainingBreathinessStatus),
		CreatedAt:                 row.CreatedAt,
		UpdatedAt:                 row.UpdatedAt,
	}
	var err error
	if sess.AssessmentRoughnessResults, err = unpackResults(row.AssessmentRoughnessResults); err != nil {
		return sess, err
	}
	if sess.AssessmentBreathinessResults, err = unpackResults(row.AssessmentBreathinessResults); err != nil {
		return sess, err
	}
	if sess.TrainingRoughnessResults, err = unpackResults(row.TrainingRoughnessResults); err != nil {
		return sess, err
	}
	if sess.TrainingBreathinessResults, err = unpackResults(row.TrainingBreathinessResults); err != nil {
		return sess, err
	}
	return sess, nil
}

func (repo progressRepository) GetUserProgress(ctx context.Context, userID string, exec ...core.DBExecutor) (progress.UserProgress, error) {
	exe := repo.getExec(exec)

	var row userProgressRow
	err := exe.GetContext(ctx, &row, `SELECT * FROM user_progress WHERE user_id = $1`, userID)
	if err != nil {
		return progress.UserProgress{}, repo.trapNoRowsErr(err, "finding progress")
	}
	up := repo.unrow(row)

	var sessRows []sessionRow
	err = exe.SelectContext(ctx, &sessRows,
		`SELECT * FROM session_progress WHERE progress_id = $1 ORDER BY `+sessionOrdering.String(), row.ID)
	if err != nil {
		return progress.UserProgress{}, errors.Wrap(err, "loading sessions")
	}
	up.Sessions = make([]progress.Session, 0, len(sessRows))
	for _, sr := range sessRows {
		sess, err := repo.unrowSession(sr)
		if err != nil {
			return progress.UserProgress{}, errors.Wrap(err, "decoding session results")
		}
		up.Sessions = append(up.Sessions, sess)
	}
	return up, nil
}

func (repo progressRepository) CreateUserProgress(ctx context.Context, up *progress.UserProgress, exec ...core.DBExecutor) error {
	if up.ID == "" {
		up.ID = uuid.New().String()
	}
	const q = `
	INSERT INTO user_progress (id, user_id, program_id, status, next_due_date, timeout_end_date, favorite_feature, created_at, updated_at)
	VALUES (:id, :user_id, :program_id, :status, :next_due_date, :timeout_end_date, :favorite_feature, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, repo.row(up)); err != nil {
		return errors.Wrap(err, "creating progress")
	}
	return nil
}

func (repo progressRepository) UpdateUserProgress(ctx context.Context, up *progress.UserProgress, exec ...core.DBExecutor) error {
	const q = `
	UPDATE user_progress
	SET status = :status, next_due_date = :next_due_date, timeout_end_date = :timeout_end_date,
	    favorite_feature = :favorite_feature, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, repo.row(up))
	if err != nil {
		return errors.Wrap(err, "updating progress")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return progress.ErrNotFound
	}
	return nil
}

func (repo progressRepository) CreateSession(ctx context.Context, progressID string, position int, sess *progress.Session, exec ...core.DBExecutor) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	row, err := repo.sessionRow(progressID, position, sess)
	if err != nil {
		return errors.Wrap(err, "encoding session results")
	}
	const q = `
	INSERT INTO session_progress (id, progress_id, position,
		assessment_status, training_roughness_status, training_breathiness_status,
		assessment_roughness_results, assessment_breathiness_results,
		training_roughness_results, training_breathiness_results,
		created_at, updated_at)
	VALUES (:id, :progress_id, :position,
		:assessment_status, :training_roughness_status, :training_breathiness_status,
		:assessment_roughness_results, :assessment_breathiness_results,
		:training_roughness_results, :training_breathiness_results,
		:created_at, :updated_at)`
	if _, err = repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return errors.Wrap(err, "creating session")
	}
	return nil
}

func (repo progressRepository) UpdateSession(ctx context.Context, progressID string, position int, sess *progress.Session, exec ...core.DBExecutor) error {
	row, err := repo.sessionRow(progressID, position, sess)
	if err != nil {
		return errors.Wrap(err, "encoding session results")
	}
	const q = `
	UPDATE session_progress
	SET assessment_status = :assessment_status,
	    training_roughness_status = :training_roughness_status,
	    training_breathiness_status = :training_breathiness_status,
	    assessment_roughness_results = :assessment_roughness_results,
	    assessment_breathiness_results = :assessment_breathiness_results,
	    training_roughness_results = :training_roughness_results,
	    training_breathiness_results = :training_breathiness_results,
	    updated_at = :updated_at
	WHERE progress_id = :progress_id AND position = :position`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, row)
	if err != nil {
		return errors.Wrap(err, "updating session")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return progress.ErrNotFound
	}
	return nil
}

func (repo progressRepository) DeleteSessions(ctx context.Context, progressID string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM session_progress WHERE progress_id = $1`, progressID)
	if err != nil {
		return errors.Wrap(err, "deleting sessions")
	}
	return nil
}

func (repo progressRepository) QueryExpired(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]progress.UserRef, error) {
	const q = `
	SELECT id, user_id FROM user_progress
	WHERE (status IN ('READY', 'WAITING') AND next_due_date IS NOT NULL AND next_due_date < $1)
	   OR (status = 'WAITING' AND timeout_end_date IS NOT NULL AND timeout_end_date < $1)`
	var refs []progress.UserRef
	if err := repo.getExec(exec).SelectContext(ctx, &refs, q, now.UTC()); err != nil {
		return nil, errors.Wrap(err, "querying expired progress")
	}
	return refs, nil
}

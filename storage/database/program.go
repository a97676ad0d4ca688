package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/voicelab/auris/core"
	"github.com/voicelab/auris/core/program"
)

type programRepository struct {
	exec core.DBExecutor
}

var _ program.Repository = (*programRepository)(nil) // interface compliance check

func NewProgramRepository(exec core.DBExecutor) *programRepository {
	return &programRepository{exec: exec}
}

func (repo programRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo programRepository) row(prog program.Program) (programRow, error) {
	row := programRow{
		ID:               prog.ID,
		Name:             prog.Name,
		NumberOfSessions: prog.NumberOfSessions,
		CreatedAt:        prog.CreatedAt.UTC(),
		UpdatedAt:        prog.UpdatedAt.UTC(),
	}
	var err error
	if row.SessionThresholds, err = packJSON(prog.SessionThresholds); err != nil {
		return row, err
	}
	if row.Assessment, err = packJSON(prog.Assessment); err != nil {
		return row, err
	}
	if row.Training, err = packJSON(prog.Training); err != nil {
		return row, err
	}
	return row, nil
}

func (repo programRepository) unrow(row programRow) (program.Program, error) {
	prog := program.Program{
		ID:               row.ID,
		Name:             row.Name,
		NumberOfSessions: row.NumberOfSessions,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	for _, field := range []struct {
		src  []byte
		dest interface{}
	}{
		{row.SessionThresholds.JSON, &prog.SessionThresholds},
		{row.Assessment.JSON, &prog.Assessment},
		{row.Training.JSON, &prog.Training},
	} {
		if len(field.src) == 0 {
			continue
		}
		if err := json.Unmarshal(field.src, field.dest); err != nil {
			return prog, err
		}
	}
	return prog, nil
}

func (repo programRepository) GetProgramByID(ctx context.Context, id string, exec ...core.DBExecutor) (program.Program, error) {
	var row programRow
	err := repo.getExec(exec).GetContext(ctx, &row, `SELECT * FROM program WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return program.Program{}, program.ErrNotFound
		}
		return program.Program{}, errors.Wrap(err, "finding program")
	}
	prog, err := repo.unrow(row)
	if err != nil {
		return program.Program{}, errors.Wrap(err, "decoding program")
	}
	return prog, nil
}

func (repo programRepository) CreateProgram(ctx context.Context, prog program.Program, exec ...core.DBExecutor) (program.Program, error) {
	if prog.ID == "" {
		prog.ID = uuid.New().String()
	}
	row, err := repo.row(prog)
	if err != nil {
		return program.Program{}, errors.Wrap(err, "encoding program")
	}
	const q = `
	INSERT INTO program (id, name, number_of_sessions, session_thresholds, assessment, training, created_at, updated_at)
	VALUES (:id, :name, :number_of_sessions, :session_thresholds, :assessment, :training, :created_at, :updated_at)`
	if _, err = repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return program.Program{}, errors.Wrap(err, "creating program")
	}
	return prog, nil
}

package inmem

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/voicelab/auris/core"
	"github.com/voicelab/auris/core/program"
)

type programRepository struct {
	mu       sync.RWMutex
	programs map[string]program.Program
}

var _ program.Repository = (*programRepository)(nil) // interface compliance check

func NewProgramRepository() *programRepository {
	return &programRepository{programs: make(map[string]program.Program)}
}

func (repo *programRepository) GetProgramByID(_ context.Context, id string, _ ...core.DBExecutor) (program.Program, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	prog, ok := repo.programs[id]
	if !ok {
		return program.Program{}, program.ErrNotFound
	}
	return prog, nil
}

func (repo *programRepository) CreateProgram(_ context.Context, prog program.Program, _ ...core.DBExecutor) (program.Program, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if prog.ID == "" {
		prog.ID = uuid.New().String()
	}
	repo.programs[prog.ID] = prog
	return prog, nil
}

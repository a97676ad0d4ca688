package program

import (
	"context"

	"github.com/voicelab/auris/core"
)

type (
	Repository interface {
		GetProgramByID(ctx context.Context, id string, exec ...core.DBExecutor) (Program, error)
		CreateProgram(ctx context.Context, prog Program, exec ...core.DBExecutor) (Program, error)
	}

	// Cache is an optional read-through cache for immutable programs.
	Cache interface {
		GetProgram(ctx context.Context, id string) (Program, bool)
		SetProgram(ctx context.Context, prog Program)
	}

	Service struct {
		repo  Repository
		cache Cache
		log   core.Logger
	}
)

func NewService(repo Repository, cache Cache, log core.Logger) *Service {
	if cache == nil {
		cache = nopCache{}
	}
	return &Service{repo: repo, cache: cache, log: log}
}

// GetByID returns the full program aggregate, hitting the cache first.
func (svc *Service) GetByID(ctx context.Context, id string) (Program, error) {
	if prog, ok := svc.cache.GetProgram(ctx, id); ok {
		return prog, nil
	}
	prog, err := svc.repo.GetProgramByID(ctx, id)
	if err != nil {
		return Program{}, err
	}
	svc.cache.SetProgram(ctx, prog)
	return prog, nil
}

func (svc *Service) Create(ctx context.Context, prog Program) (Program, error) {
	return svc.repo.CreateProgram(ctx, prog)
}

type nopCache struct{}

var _ Cache = (*nopCache)(nil)

func (nopCache) GetProgram(context.Context, string) (Program, bool) { return Program{}, false }
func (nopCache) SetProgram(context.Context, Program)                {}

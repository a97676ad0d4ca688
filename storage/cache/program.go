// Package cache holds the redis-backed read-through cache for program
// aggregates, which are immutable at runtime and fetched on every submission.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voicelab/auris/core"
	"github.com/voicelab/auris/core/program"
)

type programCache struct {
	rdb *redis.Client
	ttl time.Duration
	log core.Logger
}

var _ program.Cache = (*programCache)(nil) // interface compliance check

func NewProgramCache(conf *core.Config, log core.Logger) *programCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	return &programCache{rdb: rdb, ttl: conf.Redis.ProgramTTL, log: log}
}

func (c *programCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *programCache) key(id string) string { return "program:" + id }

func (c *programCache) GetProgram(ctx context.Context, id string) (program.Program, bool) {
	b, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("program cache read failed", "id", id, "error", err)
		}
		return program.Program{}, false
	}
	var prog program.Program
	if err = json.Unmarshal(b, &prog); err != nil {
		c.log.Warn("program cache entry corrupt", "id", id, "error", err)
		return program.Program{}, false
	}
	return prog, true
}

func (c *programCache) SetProgram(ctx context.Context, prog program.Program) {
	b, err := json.Marshal(prog)
	if err != nil {
		c.log.Warn("program cache encode failed", "id", prog.ID, "error", err)
		return
	}
	if err = c.rdb.Set(ctx, c.key(prog.ID), b, c.ttl).Err(); err != nil {
		c.log.Warn("program cache write failed", "id", prog.ID, "error", err)
	}
}

package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type counterRepository struct {
	pool *pgxpool.Pool
}

// NewCounterRepository returns a Sequencer backed by the Postgres counters table.
func NewCounterRepository(pool *pgxpool.Pool) Sequencer {
	return &counterRepository{pool: pool}
}

// NextValue upserts and increments in one statement; the row lock serializes callers.
func (r *counterRepository) NextValue(ctx context.Context, name string) (int64, error) {
	const query = `
        INSERT INTO counters (name, seq) VALUES ($1, 1)
        ON CONFLICT (name) DO UPDATE SET seq = counters.seq + 1
        RETURNING seq`
	var seq int64
	if err := r.pool.QueryRow(ctx, query, name).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next value for %s: %w", name, err)
	}
	return seq, nil
}

type redisCounterRepository struct {
	client *redis.Client
}

// NewRedisCounterRepository returns a Sequencer using HINCRBY on counters:<name>.
func NewRedisCounterRepository(client *redis.Client) Sequencer {
	return &redisCounterRepository{client: client}
}

func (r *redisCounterRepository) NextValue(ctx context.Context, name string) (int64, error) {
	seq, err := r.client.HIncrBy(ctx, "counters:"+name, "seq", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("next value for %s: %w", name, err)
	}
	return seq, nil
}

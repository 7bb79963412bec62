package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// maxUpdateAttempts bounds the optimistic WATCH/MULTI retries of Update.
const maxUpdateAttempts = 16

var ErrConflict = errors.New("kv: too many concurrent writers")

type Redis struct {
	Client *goredis.Client
}

// DialRedis connects and pings before returning so misconfiguration shows up at boot.
func DialRedis(ctx context.Context, addr string) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{Client: rdb}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.Client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.Client.Set(ctx, key, value, 0).Err()
}

// Update watches key, applies fn and commits in MULTI/EXEC. A concurrent
// write to key aborts the transaction and fn runs again on the new value.
func (r *Redis) Update(ctx context.Context, key string, fn UpdateFunc) error {
	txf := func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		ok := true
		if errors.Is(err, goredis.Nil) {
			ok = false
		} else if err != nil {
			return err
		}
		next, err := fn(current, ok)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}
	for range maxUpdateAttempts {
		err := r.Client.Watch(ctx, txf, key)
		switch {
		case errors.Is(err, goredis.TxFailedErr):
			continue
		case errors.Is(err, ErrNoChange):
			return nil
		default:
			return err
		}
	}
	return ErrConflict
}

func (r *Redis) Close() error {
	return r.Client.Close()
}

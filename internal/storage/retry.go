// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

// Retry defaults.
const (
	DefaultRetryAttempts = 3
	DefaultRetryBase     = 50 * time.Millisecond
)

// Transient reports whether err is worth retrying: dropped connections,
// serialization failures and deadlocks.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code) || pgerrcode.IsTransactionRollback(pgErr.Code)
	}
	return false
}

type retrying struct {
	inner     Store
	attempts  uint64
	base      time.Duration
	retryable func(error) bool
}

// WithRetry wraps s so transient failures are retried with exponential
// backoff. attempts counts retries after the first try.
func WithRetry(s Store, attempts uint64, base time.Duration) Store {
	if base <= 0 {
		base = DefaultRetryBase
	}
	return &retrying{inner: s, attempts: attempts, base: base, retryable: Transient}
}

func (r *retrying) do(ctx context.Context, fn func(context.Context) error) error {
	b := retry.WithMaxRetries(r.attempts, retry.NewExponential(r.base))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if r.retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (r *retrying) Save(ctx context.Context, rec Record) error {
	return r.do(ctx, func(ctx context.Context) error { return r.inner.Save(ctx, rec) })
}

func (r *retrying) Delete(ctx context.Context, id int64) (bool, error) {
	var existed bool
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		existed, err = r.inner.Delete(ctx, id)
		return err
	})
	return existed, err
}

func (r *retrying) LoadAll(ctx context.Context) ([]Record, error) {
	var out []Record
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.inner.LoadAll(ctx)
		return err
	})
	return out, err
}

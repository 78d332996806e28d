// SPDX-FileCopyrightText: 2024 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryConfig defines the configuration for retry operations
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (0 means no retries)
	MaxRetries int
	// InitialBackoff is the initial backoff duration before the first retry
	InitialBackoff time.Duration
	// MaxBackoff is the maximum backoff duration between retries
	MaxBackoff time.Duration
	// BackoffMultiplier is the factor by which backoff is multiplied after each retry
	BackoffMultiplier float64
}

// DefaultRetryConfig returns a sensible default retry configuration for conditional writes
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// UpdateWithRetry runs update and retries it while it fails with an error for which
// isConflict returns true. update must re-read the record on every call so that each
// attempt works against the latest stored version.
func UpdateWithRetry(
	ctx context.Context,
	config RetryConfig,
	isConflict func(error) bool,
	update func(ctx context.Context, attempt int) error,
) error {
	backoff := config.InitialBackoff

	for attempt := 0; ; attempt++ {
		err := update(ctx, attempt)
		if err == nil {
			return nil
		}

		// Check if it's a conflict error and we should retry
		if !isConflict(err) || attempt >= config.MaxRetries {
			return err
		}

		zap.S().Debugw("Update conflict, retrying",
			"attempt", attempt+1,
			"maxRetries", config.MaxRetries,
			"backoff", backoff.String(),
		)

		// Wait before retrying
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		// Increase backoff for next retry
		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}
}

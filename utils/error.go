package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/datazip-inc/streamcatchup/utils/logger"
)

// ErrExec executes a list of functions concurrently and returns the first error.
// Functions not yet started are skipped once the context is cancelled.
func ErrExec(ctx context.Context, functions ...func(ctx context.Context) error) error {
	group, ctx := errgroup.WithContext(ctx)

	for _, one := range functions {
		group.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return one(ctx)
			}
		})
	}

	return group.Wait()
}

// ErrExecSequential executes a list of functions sequentially, accumulating every error.
func ErrExecSequential(functions ...func() error) error {
	var multErr error

	for _, one := range functions {
		if err := one(); err != nil {
			multErr = multierror.Append(multErr, err)
		}
	}

	return multErr
}

// RetryExec retries a function up to a specified number of attempts with a delay between retries.
// The last error is returned unchanged so callers still see the original failure.
func RetryExec(ctx context.Context, function func() error, retries int, delay time.Duration) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		err = function()
		if err == nil {
			return nil
		}
		if attempt == retries {
			break
		}
		logger.Debugf("Attempt %d failed: %s", attempt+1, err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return err
}

// ErrExecFormat formats the error returned from a function according to the provided format string.
func ErrExecFormat(format string, function func() error) func() error {
	return func() error {
		if err := function(); err != nil {
			return fmt.Errorf(format, err)
		}
		return nil
	}
}

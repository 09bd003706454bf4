package cmd

import (
	"context"
	"time"

	"github.com/avast/retry-go"

	"github.com/s0up4200/ptpapi/apierr"
	"github.com/s0up4200/ptpapi/config"
)

const retryAttempts = 3

var retryDelay = 500 * time.Millisecond

// withRetry runs fn, retrying transient failures when the retry setting is
// on. The client itself never retries.
func withRetry[T any](ctx context.Context, cfg *config.Config, fn func(context.Context) (T, error)) (T, error) {
	var result T

	if cfg == nil || !cfg.GetBool(config.KeyRetry) {
		return fn(ctx)
	}

	err := retry.Do(
		func() error {
			var err error
			result, err = fn(ctx)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.Delay(retryDelay),
		retry.RetryIf(apierr.IsTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn().
				Err(err).
				Uint("attempt", n+1).
				Msg("Retrying after transient failure")
		}),
	)
	return result, err
}

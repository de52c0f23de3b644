package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	// DefaultMaxAttempts is the default number of transaction attempts
	DefaultMaxAttempts = 3
	// DefaultBaseBackoff is the default base backoff duration
	DefaultBaseBackoff = 100 * time.Millisecond
)

// ErrRetriesExhausted is returned when every attempt hit a retryable error
var ErrRetriesExhausted = errors.New("transaction retries exhausted")

// PostgreSQL SQLSTATE codes worth retrying
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	// Concurrent CREATE ... IF NOT EXISTS can race on the catalog
	codeUniqueViolation = "23505"
)

// RetryConfig configures retry behavior for transactions
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: DefaultMaxAttempts,
		BaseBackoff: DefaultBaseBackoff,
	}
}

// WithRetry sets the retry behavior of the applier
func WithRetry(cfg RetryConfig) Option {
	return func(a *Applier) {
		if cfg.MaxAttempts < 1 {
			cfg.MaxAttempts = 1
		}
		a.retry = cfg
	}
}

// IsRetryableError reports whether err carries a PostgreSQL error code that
// a fresh transaction may not hit again. Both pgx and lib/pq errors are
// recognized.
func IsRetryableError(err error) bool {
	switch sqlState(err) {
	case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation:
		return true
	default:
		return false
	}
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// withRetry runs fn in a transaction, retrying with exponential backoff
// while the failure is retryable.
func (a *Applier) withRetry(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var lastErr error

	for attempt := 0; attempt < a.retry.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("transaction cancelled before attempt %d: %w", attempt+1, ctx.Err())
		}

		err := a.inTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsRetryableError(err) {
			return err
		}
		lastErr = err

		backoff := a.retry.BaseBackoff * time.Duration(1<<uint(attempt))
		a.logger.Warn("retrying transaction",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction cancelled during retry: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, a.retry.MaxAttempts, lastErr)
}

package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Verification errors.
var (
	// ErrVerifyTimeout means reachability was not confirmed within the timeout.
	ErrVerifyTimeout = errors.New("connectivity not confirmed before timeout")

	// ErrVerify means verification cannot succeed, whatever the timeout.
	ErrVerify = errors.New("connectivity verification failed")
)

// DefaultTimeout is the default verification budget.
const DefaultTimeout = 30 * time.Second

// Config configures a Verifier.
type Config struct {
	// Backoff controls the delay between checks.
	Backoff BackoffConfig

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// Verifier checks lease and reachability after a client association.
type Verifier struct {
	lease   LeaseChecker
	checks  []ReachCheck
	backoff BackoffConfig
	logger  *slog.Logger
}

// NewVerifier creates a verifier. With no checks, a lease alone passes.
func NewVerifier(lease LeaseChecker, checks []ReachCheck, config Config) *Verifier {
	return &Verifier{
		lease:   lease,
		checks:  checks,
		backoff: config.Backoff,
		logger:  config.Logger,
	}
}

// Verify retries the lease and reachability checks until one round passes,
// timeout expires, or a non-retryable condition is found.
func (v *Verifier) Verify(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := NewBackoff(v.backoff)
	var lastErr error

	for {
		err := v.check(ctx)
		if err == nil {
			v.debugLog("Verify: connectivity confirmed", "checks", b.Attempts()+1)
			return nil
		}
		if errors.Is(err, ErrInterfaceMissing) {
			return fmt.Errorf("%w: %w", ErrVerify, err)
		}
		if ctx.Err() == nil || lastErr == nil {
			lastErr = err
		}

		delay := b.Next()
		v.debugLog("Verify: check failed", "attempt", b.Attempts(), "retryIn", delay, "error", err)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w after %s: %w", ErrVerifyTimeout, timeout, lastErr)
		case <-t.C:
		}
	}
}

func (v *Verifier) check(ctx context.Context) error {
	addr, err := v.lease.Lease(ctx)
	if err != nil {
		return err
	}
	if len(v.checks) == 0 {
		return nil
	}

	var errs []error
	for _, p := range v.checks {
		if err := p.Check(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		v.debugLog("Verify: check passed", "check", p.Name(), "addr", addr)
		return nil
	}
	return errors.Join(errs...)
}

func (v *Verifier) debugLog(msg string, args ...any) {
	if v.logger != nil {
		v.logger.Debug(msg, args...)
	}
}

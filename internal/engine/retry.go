package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrorClass tells a retry loop whether to keep going.
type ErrorClass int

const (
	Transient ErrorClass = iota // rate limit, timeout, flaky network: retry
	Permanent                   // private, removed, copyright-blocked: stop now
)

func (c ErrorClass) String() string {
	if c == Permanent {
		return "permanent"
	}
	return "transient"
}

// permanentMarkers are error-text fragments that mean retrying cannot help.
var permanentMarkers = []string{
	"private video",
	"video unavailable",
	"this video is private",
	"has been removed",
	"been terminated",
	"account associated with this video",
	"copyright",
	"blocked it in your country",
	"not available in your country",
	"sign in to confirm your age",
	"members-only",
	"join this channel",
	"does not exist",
	"404",
}

// ClassifyError inspects err's text and classifies it. Unknown errors are
// transient so the attempt bound, not the classifier, ends the loop.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return Transient
	}
	if errors.Is(err, context.Canceled) {
		return Permanent
	}
	var pe *backoff.PermanentError
	if errors.As(err, &pe) {
		return Permanent
	}
	msg := strings.ToLower(err.Error())
	for _, m := range permanentMarkers {
		if strings.Contains(msg, m) {
			return Permanent
		}
	}
	return Transient
}

// RetryPolicy controls how an operation is retried: attempt bound, exponential
// base delay with jitter, and the permanent/transient classifier. Sleep is
// injectable so tests run on a fake clock.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      float64 // randomization factor in [0,1]
	Classify    func(error) ErrorClass
	Sleep       func(ctx context.Context, d time.Duration) error
}

// DefaultDownloadPolicy is used for audio downloads.
func DefaultDownloadPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2,
		Jitter:      0.5,
		Classify:    ClassifyError,
		Sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// backOff builds the exponential schedule for p.
func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.MaxInterval = p.MaxDelay
	bo.Multiplier = p.Multiplier
	bo.RandomizationFactor = p.Jitter
	if bo.Multiplier < 1 {
		bo.Multiplier = 1
	}
	bo.Reset()
	return bo
}

// Do runs fn up to MaxAttempts times. attempt is 0-based so fn can rotate
// user agents or formats per attempt. A permanent error stops immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	classify := p.Classify
	if classify == nil {
		classify = ClassifyError
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	bo := p.backOff()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if classify(err) == Permanent {
			slog.Debug("retry: permanent error, giving up", slog.Int("attempt", attempt+1), slog.Any("error", err))
			return err
		}
		if attempt == attempts-1 {
			break
		}
		wait := bo.NextBackOff()
		slog.Debug("retrying", slog.Int("attempt", attempt+1), slog.Duration("wait", wait), slog.Any("error", err))
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// fakeSleeper records requested waits without sleeping.
type fakeSleeper struct {
	waits []time.Duration
}

func (f *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	f.waits = append(f.waits, d)
	return nil
}

func testPolicy(s *fakeSleeper) RetryPolicy {
	p := DefaultDownloadPolicy()
	p.Sleep = s.Sleep
	return p
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, Transient},
		{"timeout", errors.New("read tcp: i/o timeout"), Transient},
		{"rate limit", errors.New("HTTP Error 429: Too Many Requests"), Transient},
		{"private", errors.New("ERROR: [youtube] abc: Private video. Sign in if you've been granted access"), Permanent},
		{"unavailable", errors.New("Video unavailable"), Permanent},
		{"copyright", errors.New("blocked on copyright grounds"), Permanent},
		{"region blocked", errors.New("who has blocked it in your country"), Permanent},
		{"members", errors.New("Join this channel to get access to members-only content"), Permanent},
		{"canceled", context.Canceled, Permanent},
		{"backoff permanent", backoff.Permanent(errors.New("stop")), Permanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryPolicySuccessFirstAttempt(t *testing.T) {
	s := &fakeSleeper{}
	calls := 0
	err := testPolicy(s).Do(context.Background(), func(_ context.Context, _ int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if len(s.waits) != 0 {
		t.Errorf("expected no waits, got %v", s.waits)
	}
}

func TestRetryPolicyTransientExhaustsAttempts(t *testing.T) {
	s := &fakeSleeper{}
	var attempts []int
	err := testPolicy(s).Do(context.Background(), func(_ context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		return errors.New("connection reset by peer")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(attempts))
	}
	for i, a := range attempts {
		if a != i {
			t.Errorf("attempt %d reported index %d", i, a)
		}
	}
	if len(s.waits) != 2 {
		t.Fatalf("expected 2 waits between 3 attempts, got %d", len(s.waits))
	}
	// Jitter 0.5 around a 2s base: first wait is within [1s, 3s].
	if s.waits[0] < time.Second || s.waits[0] > 3*time.Second {
		t.Errorf("first wait %v outside jitter window", s.waits[0])
	}
}

func TestRetryPolicyPermanentStopsImmediately(t *testing.T) {
	s := &fakeSleeper{}
	calls := 0
	err := testPolicy(s).Do(context.Background(), func(_ context.Context, _ int) error {
		calls++
		return errors.New("ERROR: This video is private")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("permanent error should stop after 1 call, got %d", calls)
	}
	if len(s.waits) != 0 {
		t.Errorf("expected no waits, got %v", s.waits)
	}
}

func TestRetryPolicyRecovers(t *testing.T) {
	s := &fakeSleeper{}
	calls := 0
	err := testPolicy(s).Do(context.Background(), func(_ context.Context, _ int) error {
		calls++
		if calls < 2 {
			return errors.New("HTTP Error 503")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestRetryPolicyContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := testPolicy(&fakeSleeper{}).Do(ctx, func(_ context.Context, _ int) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no calls on cancelled context, got %d", calls)
	}
}

func TestRetryPolicyZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	p := RetryPolicy{Sleep: (&fakeSleeper{}).Sleep}
	_ = p.Do(context.Background(), func(_ context.Context, _ int) error {
		calls++
		return errors.New("boom")
	})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

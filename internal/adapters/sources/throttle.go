package sources

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxWaitableWindow bounds how long a window throttle will sleep when its
// request budget is exhausted. A 60-second window can be waited out; a
// 24-hour quota cannot, so the client fails fast instead.
const maxWaitableWindow = time.Minute

// throttle gates outbound requests. Implementations hold their state per
// client instance; nothing is shared process-wide, so two clients never
// interfere.
type throttle interface {
	Wait(ctx context.Context) error
}

// intervalThrottle enforces a fixed minimum delay between requests.
type intervalThrottle struct {
	lim *rate.Limiter
}

func newIntervalThrottle(minInterval time.Duration) *intervalThrottle {
	if minInterval <= 0 {
		minInterval = time.Second
	}
	return &intervalThrottle{lim: rate.NewLimiter(rate.Every(minInterval), 1)}
}

func (t *intervalThrottle) Wait(ctx context.Context) error {
	return t.lim.Wait(ctx)
}

// windowThrottle caps requests per sliding window. When the budget is
// spent it either sleeps until the window rolls over (short windows) or
// returns ErrRateLimited (windows longer than maxWaitableWindow).
type windowThrottle struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	count       int
	windowStart time.Time

	now   func() time.Time                           // swappable for tests
	sleep func(context.Context, time.Duration) error // swappable for tests
}

func newWindowThrottle(maxRequests int, window time.Duration) *windowThrottle {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &windowThrottle{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

func (t *windowThrottle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.windowStart.IsZero() || now.Sub(t.windowStart) >= t.window {
		t.windowStart = now
		t.count = 0
	}

	if t.count < t.maxRequests {
		t.count++
		return nil
	}

	if t.window > maxWaitableWindow {
		return ErrRateLimited
	}

	remainder := t.window - now.Sub(t.windowStart)
	if err := t.sleep(ctx, remainder); err != nil {
		return err
	}
	t.windowStart = t.now()
	t.count = 1
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package bwlimit

import (
	"io"
	"time"
)

// minimumSleep is the shortest pause the limiter will actually take;
// a deficit that would need a shorter pause still sleeps this long,
// matching
// original_source/crates/bandwidth/src/limiter/mod.rs's
// MINIMUM_SLEEP_MICROS (100ms).
const minimumSleep = 100 * time.Millisecond

// minWriteSize is the smallest chunk the limiter paces individually;
// writes are split into pieces no smaller than this so the sleep
// granularity above doesn't starve throughput, matching limiter/mod.rs's
// MIN_WRITE_MAX.
const minWriteSize = 512

// Limiter paces Write calls to a target byte-per-second rate using a
// token bucket: each write consumes budget that refills at the rate, and
// whenever the budget is short the limiter sleeps for the time the
// deficit needs to refill, but never less than minimumSleep. Zero value
// is unlimited.
type Limiter struct {
	rate  int64 // bytes per second; 0 means unlimited
	burst int64 // bucket capacity in bytes

	tokens   float64
	lastFill time.Time
	now      func() time.Time
	sleep    func(time.Duration)
}

// New constructs a Limiter for rate bytes/sec with the given burst
// capacity in bytes. rate <= 0 means unlimited (Wait and Writer become
// no-ops). burst <= 0 defaults to one second's worth of the rate.
func New(rate, burst int64) *Limiter {
	if burst <= 0 {
		burst = rate
	}
	return &Limiter{
		rate:     rate,
		burst:    burst,
		tokens:   float64(burst),
		lastFill: time.Now(),
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Unlimited returns a Limiter that never paces.
func Unlimited() *Limiter { return &Limiter{} }

func (l *Limiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastFill)
	l.lastFill = now
	l.tokens += elapsed.Seconds() * float64(l.rate)
	if cap := float64(l.burst); l.tokens > cap {
		l.tokens = cap
	}
}

// Wait blocks until n bytes' worth of budget is available, consuming
// it. A no-op when the limiter is unlimited.
func (l *Limiter) Wait(n int) {
	if l == nil || l.rate <= 0 || n <= 0 {
		return
	}
	need := float64(n)
	for {
		l.refill()
		if l.tokens >= need {
			l.tokens -= need
			return
		}
		deficit := need - l.tokens
		wait := time.Duration(deficit / float64(l.rate) * float64(time.Second))
		if wait < minimumSleep {
			wait = minimumSleep
		}
		l.sleep(wait)
	}
}

// Writer wraps w so every Write is paced against the limiter, splitting
// large writes into minWriteSize-or-larger pieces so a big buffer
// doesn't block in one long sleep before any bytes land.
func (l *Limiter) Writer(w io.Writer) io.Writer {
	if l == nil || l.rate <= 0 {
		return w
	}
	return &limitedWriter{l: l, w: w}
}

type limitedWriter struct {
	l *Limiter
	w io.Writer
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n := len(p)
		if n > minWriteSize && n > int(lw.l.burst) {
			n = int(lw.l.burst)
			if n < minWriteSize {
				n = minWriteSize
			}
		}
		if n > len(p) {
			n = len(p)
		}
		lw.l.Wait(n)
		written, err := lw.w.Write(p[:n])
		total += written
		if err != nil {
			return total, err
		}
		p = p[n:]
	}
	return total, nil
}

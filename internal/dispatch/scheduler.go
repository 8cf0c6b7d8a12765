package dispatch

import (
	"log/slog"
	"time"
)

// Scheduler arms the cancellable timeout tied to one outstanding offer.
// Timers are process-local and not persisted; a restart loses them.
type Scheduler interface {
	Arm(tripID string, seq uint64, delay time.Duration, fn func()) TimerHandle
}

// TimerHandle cancels an armed timer. Cancelling after the timer fired
// is a harmless no-op: the sequence check inside the callback is the
// authoritative guard, not the cancellation.
type TimerHandle interface {
	Cancel()
}

// TimerScheduler runs callbacks on time.AfterFunc goroutines. A panic in
// a callback is contained and logged; it never takes the process down.
type TimerScheduler struct {
	logger *slog.Logger
}

func NewTimerScheduler(logger *slog.Logger) *TimerScheduler {
	return &TimerScheduler{logger: logger}
}

func (s *TimerScheduler) Arm(tripID string, seq uint64, delay time.Duration, fn func()) TimerHandle {
	t := time.AfterFunc(delay, func() {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("offer timer panic", "trip_id", tripID, "seq", seq, "error", rec)
			}
		}()
		fn()
	})
	return timerHandle{t}
}

type timerHandle struct{ t *time.Timer }

func (h timerHandle) Cancel() { h.t.Stop() }

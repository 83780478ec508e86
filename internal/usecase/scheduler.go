package usecase

import "time"

// Scheduler runs fn once after d. The returned func cancels the task and
// reports whether it was still pending.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (cancel func() bool)
}

type timeScheduler struct{}

func NewTimeScheduler() Scheduler {
	return timeScheduler{}
}

func (timeScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

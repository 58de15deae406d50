package extract

import (
	"context"
	"time"
)

// Session is one authenticated browser context. A session is owned by the
// fetch that created it and must be closed on every exit path of that fetch.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	WaitReady(ctx context.Context, timeout time.Duration) error
	Reload(ctx context.Context) error
	Content(ctx context.Context) (string, error)
	Close() error
}

// Browser opens sessions. The production implementation drives a headless
// Chrome; tests substitute a fake.
type Browser interface {
	NewSession(ctx context.Context, headless bool) (Session, error)
}

// Clock abstracts time for the retry logic so backoff behavior is testable
// with a fake.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func NewClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

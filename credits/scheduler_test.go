package credits

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeResetter struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (f *fakeResetter) ResetCredits(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	if f.err != nil {
		return 0, f.err
	}
	return 7, nil
}

func TestScheduler(t *testing.T) {
	t.Run("run now resets with the current time", func(t *testing.T) {
		r := &fakeResetter{}
		s, err := NewScheduler(r, "")
		if err != nil {
			t.Fatalf("NewScheduler() error = %v", err)
		}
		fixed := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
		s.now = func() time.Time { return fixed }

		n, err := s.RunNow(context.Background())
		if err != nil || n != 7 {
			t.Fatalf("RunNow() = %d, %v", n, err)
		}
		if len(r.calls) != 1 || !r.calls[0].Equal(fixed) {
			t.Errorf("calls = %v", r.calls)
		}
	})

	t.Run("reset errors are returned", func(t *testing.T) {
		boom := errors.New("db down")
		s, _ := NewScheduler(&fakeResetter{err: boom}, "")
		if _, err := s.RunNow(context.Background()); !errors.Is(err, boom) {
			t.Errorf("RunNow() error = %v", err)
		}
	})

	t.Run("default schedule is the first of the month", func(t *testing.T) {
		s, _ := NewScheduler(&fakeResetter{}, "")
		s.Start()
		defer s.Stop(context.Background())

		next := s.Next()
		if next.Day() != 1 || next.Hour() != 0 || next.Minute() != 0 {
			t.Errorf("Next() = %v", next)
		}
	})

	t.Run("invalid schedule", func(t *testing.T) {
		if _, err := NewScheduler(&fakeResetter{}, "every tuesday"); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("stop waits for the scheduler", func(t *testing.T) {
		s, _ := NewScheduler(&fakeResetter{}, "@every 1h")
		s.Start()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.Stop(ctx); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
}

package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name                        string
		perSecond, perHour, perDay  int
		wantErr                     bool
	}{
		{"valid", 10, 1000, 2000, false},
		{"day below hour is legal", 10, 10000, 1000, false},
		{"day equals hour", 10, 500, 500, false},
		{"zero per second", 0, 10, 10, true},
		{"zero per hour", 10, 0, 10, true},
		{"zero per day", 10, 10, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.perSecond, tt.perHour, tt.perDay)
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%d, %d, %d) error = %v, wantErr %v",
					tt.perSecond, tt.perHour, tt.perDay, err, tt.wantErr)
			}
		})
	}
}

func TestStats_ReportsLimits(t *testing.T) {
	lim, err := New(10, 1000, 2000)
	if err != nil {
		t.Fatal(err)
	}
	s := lim.Stats()
	if s.HourLimit != 1000 || s.DayLimit != 2000 || s.SecondLimit != 10 {
		t.Errorf("unexpected limits in stats: %+v", s)
	}
	if s.SecondCount != 0 || s.HourCount != 0 || s.DayCount != 0 {
		t.Errorf("expected zero counts before any acquire: %+v", s)
	}
}

func TestTryAcquire_AllOrNothing(t *testing.T) {
	// Day window is the tightest: after 2 grants everything is rejected,
	// and rejections must not consume the other windows.
	lim, err := New(100, 100, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !lim.TryAcquire() || !lim.TryAcquire() {
		t.Fatal("first two acquisitions should be granted")
	}
	for i := 0; i < 5; i++ {
		if lim.TryAcquire() {
			t.Fatal("acquisition beyond day limit was granted")
		}
	}
	s := lim.Stats()
	if s.DayCount != 2 {
		t.Errorf("day count = %d, want 2", s.DayCount)
	}
	if s.HourCount != 2 {
		t.Errorf("hour count = %d, want 2 (rejections must not consume)", s.HourCount)
	}
}

func TestTryAcquire_SecondWindowResets(t *testing.T) {
	lim, err := New(2, 1000, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if !lim.TryAcquire() || !lim.TryAcquire() {
		t.Fatal("expected two grants")
	}
	if lim.TryAcquire() {
		t.Fatal("third grant within the same second")
	}
	time.Sleep(1100 * time.Millisecond)
	if !lim.TryAcquire() {
		t.Fatal("expected grant after second window reset")
	}
	s := lim.Stats()
	if s.HourCount != 3 {
		t.Errorf("hour count = %d, want 3 (hour window must not reset)", s.HourCount)
	}
}

func TestTryAcquire_ConcurrentNeverOvershoots(t *testing.T) {
	const limit = 50
	lim, err := New(limit, limit, limit)
	if err != nil {
		t.Fatal(err)
	}
	var granted int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lim.TryAcquire() {
				atomic.AddInt64(&granted, 1)
			}
		}()
	}
	wg.Wait()
	if granted != limit {
		t.Errorf("granted = %d, want exactly %d", granted, limit)
	}
}

func TestWaitAcquire_TimesOutWithoutConsuming(t *testing.T) {
	lim, err := New(1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !lim.TryAcquire() {
		t.Fatal("first acquire should be granted")
	}
	start := time.Now()
	if lim.WaitAcquire(context.Background(), 50*time.Millisecond) {
		t.Fatal("expected timeout; day window cannot free up")
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("returned before the timeout elapsed")
	}
	if s := lim.Stats(); s.DayCount != 1 {
		t.Errorf("day count = %d, want 1 (timeout must not consume)", s.DayCount)
	}
}

func TestWaitAcquire_GrantsWhenWindowFrees(t *testing.T) {
	lim, err := New(1, 100, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !lim.TryAcquire() {
		t.Fatal("first acquire should be granted")
	}
	// The second window frees within ~1s; the wait must pick it up.
	if !lim.WaitAcquire(context.Background(), 3*time.Second) {
		t.Fatal("expected grant once the second window reset")
	}
}

func TestWaitAcquire_CancelledContext(t *testing.T) {
	lim, err := New(1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	lim.TryAcquire()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if lim.WaitAcquire(ctx, 5*time.Second) {
		t.Fatal("expected denial after context cancellation")
	}
}

func TestConfigure_AtRuntime(t *testing.T) {
	lim, err := New(1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	lim.TryAcquire()
	if lim.TryAcquire() {
		t.Fatal("limit 1 should reject the second acquire")
	}
	if err := lim.Configure(10, 10, 10); err != nil {
		t.Fatal(err)
	}
	if !lim.TryAcquire() {
		t.Fatal("expected grant after raising the limits")
	}
	if s := lim.Stats(); s.DayLimit != 10 {
		t.Errorf("day limit = %d, want 10", s.DayLimit)
	}
}

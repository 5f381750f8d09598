package governor

import (
	"testing"
	"time"
)

func TestGovernor_Record(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		offsets       []time.Duration
		wantCount     int
		wantExhausted bool
	}{
		{
			name:          "Three errors within cooldown exhaust the budget",
			offsets:       []time.Duration{0, 2 * time.Second, 4 * time.Second},
			wantCount:     3,
			wantExhausted: true,
		},
		{
			name:          "Errors spread beyond cooldown reset the streak",
			offsets:       []time.Duration{0, 6 * time.Second, 12 * time.Second},
			wantCount:     1,
			wantExhausted: false,
		},
		{
			name:          "Gap in the middle restarts counting",
			offsets:       []time.Duration{0, 1 * time.Second, 7 * time.Second, 8 * time.Second},
			wantCount:     2,
			wantExhausted: false,
		},
		{
			name:          "Exactly at cooldown is outside the window",
			offsets:       []time.Duration{0, 5 * time.Second, 10 * time.Second},
			wantCount:     1,
			wantExhausted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(DefaultConfig())
			var count int
			var exhausted bool
			for _, off := range tt.offsets {
				count, exhausted = g.Record(base.Add(off))
			}
			if count != tt.wantCount {
				t.Errorf("count: want %d, got %d", tt.wantCount, count)
			}
			if exhausted != tt.wantExhausted {
				t.Errorf("exhausted: want %v, got %v", tt.wantExhausted, exhausted)
			}
			if g.Exhausted() != tt.wantExhausted {
				t.Errorf("Exhausted(): want %v", tt.wantExhausted)
			}
		})
	}
}

func TestGovernor_ResetAfterSuccess(t *testing.T) {
	g := New(DefaultConfig())
	now := time.Now()
	g.Record(now)
	g.Record(now.Add(time.Second))
	g.Reset()

	if g.Count() != 0 {
		t.Fatalf("count after reset: want 0, got %d", g.Count())
	}
	// The timestamp survives a reset, so the next close error starts at 1 again
	count, exhausted := g.Record(now.Add(2 * time.Second))
	if count != 1 || exhausted {
		t.Errorf("want (1, false), got (%d, %v)", count, exhausted)
	}
}

func TestGovernor_RetryDelay(t *testing.T) {
	g := New(DefaultConfig())
	cases := map[int]time.Duration{
		1: 3 * time.Second,
		2: 6 * time.Second,
		3: 9 * time.Second,
		4: 10 * time.Second,
		9: 10 * time.Second,
	}
	for count, want := range cases {
		if got := g.RetryDelay(count); got != want {
			t.Errorf("RetryDelay(%d): want %s, got %s", count, want, got)
		}
	}
}

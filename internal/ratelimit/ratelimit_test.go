package ratelimit

import (
	"errors"
	"testing"
	"time"
)

func TestQuotaExhaustsAndResets(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := NewQuotaWithClock(2, time.Hour, func() time.Time { return now })

	for i := 0; i < 2; i++ {
		if err := q.Take("huggingface"); err != nil {
			t.Fatalf("Take #%d: unexpected error %v", i+1, err)
		}
	}
	if err := q.Take("huggingface"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Take over limit = %v, want ErrQuotaExceeded", err)
	}
	// other providers have their own budget
	if err := q.Take("gemini"); err != nil {
		t.Fatalf("gemini Take: %v", err)
	}

	now = now.Add(time.Hour + time.Second)
	if err := q.Take("huggingface"); err != nil {
		t.Fatalf("Take after reset: %v", err)
	}
	if got := q.Used("huggingface"); got != 1 {
		t.Fatalf("Used = %d, want 1", got)
	}
}

func TestQuotaUnlimited(t *testing.T) {
	q := NewQuota(0)
	for i := 0; i < 100; i++ {
		if err := q.Take("x"); err != nil {
			t.Fatalf("unlimited quota returned %v", err)
		}
	}

	var nilQuota *Quota
	if err := nilQuota.Take("x"); err != nil {
		t.Fatalf("nil quota returned %v", err)
	}
}

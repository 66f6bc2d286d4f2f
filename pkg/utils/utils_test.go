package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClampedDate(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name  string
		year  int
		month time.Month
		want  string
	}{
		{"january", 2025, time.January, "2025-01-30"},
		{"february", 2025, time.February, "2025-02-28"},
		{"leap february", 2024, time.February, "2024-02-29"},
		{"overflow month", 2025, 13, "2026-01-30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampedDate(tt.year, tt.month, 30, loc).Format("2006-01-02")
			if got != tt.want {
				t.Errorf("ClampedDate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, time.Millisecond, 2*time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RetryWithBackoff() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestPagination(t *testing.T) {
	p := NewPagination(3, 10, 45)
	if p.Offset() != 20 || p.Limit() != 10 || p.Pages != 5 {
		t.Errorf("unexpected pagination %+v", p)
	}
	p = NewPagination(0, 0, 0)
	if p.Page != 1 || p.PageSize != 20 {
		t.Errorf("defaults not applied: %+v", p)
	}
}

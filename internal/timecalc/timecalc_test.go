package timecalc_test

import (
	"testing"
	"time"

	"github.com/Tiliavir/trivial-journal/internal/timecalc"
)

func TestBucketName(t *testing.T) {
	ts := time.Date(2024, 1, 2, 23, 30, 0, 0, time.FixedZone("", 5*3600))
	if got := timecalc.BucketName(ts); got != "2024-01-02" {
		t.Errorf("BucketName = %q, want %q", got, "2024-01-02")
	}
}

func TestParseBucketName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"2024-01-02", true},
		{"2024-02-29", true},
		{"2023-02-29", false},
		{"2024-1-2", false},
		{"20240102", false},
		{".2024-01-02", false},
		{"notes", false},
	}
	for _, tt := range tests {
		_, ok := timecalc.ParseBucketName(tt.name)
		if ok != tt.ok {
			t.Errorf("ParseBucketName(%q) ok = %v, want %v", tt.name, ok, tt.ok)
		}
	}
}

func TestParseDateArg(t *testing.T) {
	now := time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		arg     string
		want    string
		wantErr bool
	}{
		{"2024-01-02", "2024-01-02", false},
		{"03-15", "2026-03-15", false},
		{"today", "2026-02-27", false},
		{"Yesterday", "2026-02-26", false},
		{"02-30", "", true},
		{"13-01", "", true},
		{"2024-13-01", "", true},
		{"next week", "", true},
	}
	for _, tt := range tests {
		got, err := timecalc.ParseDateArg(tt.arg, now)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDateArg(%q) = %v, want error", tt.arg, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDateArg(%q): %v", tt.arg, err)
			continue
		}
		if s := timecalc.BucketName(got); s != tt.want {
			t.Errorf("ParseDateArg(%q) = %q, want %q", tt.arg, s, tt.want)
		}
	}
}

func TestDateFilter(t *testing.T) {
	now := time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC)

	all, err := timecalc.DateFilter("", now)
	if err != nil || all != nil {
		t.Fatalf("DateFilter(\"\") returned filter=%v, err=%v; want nil, nil", all != nil, err)
	}

	tests := []struct {
		arg   string
		date  string
		match bool
	}{
		{"2024-01-*", "2024-01-31", true},
		{"2024-01-*", "2024-02-01", false},
		{"2024-0[1-3]-??", "2024-03-09", true},
		{"2024-0[1-3]-??", "2024-04-09", false},
		{"02-27", "2026-02-27", true},
		{"02-27", "2025-02-27", false},
		{"2024-01-02", "2024-01-02", true},
	}
	for _, tt := range tests {
		f, err := timecalc.DateFilter(tt.arg, now)
		if err != nil {
			t.Fatalf("DateFilter(%q): %v", tt.arg, err)
		}
		if got := f(tt.date); got != tt.match {
			t.Errorf("DateFilter(%q)(%q) = %v, want %v", tt.arg, tt.date, got, tt.match)
		}
	}

	if _, err := timecalc.DateFilter("13-45", now); err == nil {
		t.Error("DateFilter(\"13-45\"): expected error")
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC)
	b := time.Date(2026, 2, 27, 23, 59, 59, 0, time.UTC)
	c := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)

	if !timecalc.SameDay(a, b) {
		t.Error("SameDay: expected same day for a and b")
	}
	if timecalc.SameDay(a, c) {
		t.Error("SameDay: expected different day for a and c")
	}
}

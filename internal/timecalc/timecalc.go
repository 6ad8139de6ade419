package timecalc

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/Tiliavir/trivial-journal/internal/model"
)

// BucketName returns the day bucket name for t, e.g. "2024-01-02".
func BucketName(t time.Time) string {
	return t.Format(model.DateLayout)
}

// ParseBucketName parses a bucket name. Anything that is not a zero-padded
// calendar date is rejected.
func ParseBucketName(name string) (time.Time, bool) {
	if len(name) != len(model.DateLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(model.DateLayout, name, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseDateArg parses a date given on the command line. Accepted forms are
// "YYYY-MM-DD", "MM-DD" (in the year of now), "today" and "yesterday".
func ParseDateArg(arg string, now time.Time) (time.Time, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "today":
		return StartOfDay(now), nil
	case "yesterday":
		return StartOfDay(now.AddDate(0, 0, -1)), nil
	}

	parts := strings.Split(arg, "-")
	switch len(parts) {
	case 3:
		if t, ok := ParseBucketName(arg); ok {
			return t, nil
		}
	case 2:
		month, errM := strconv.Atoi(parts[0])
		day, errD := strconv.Atoi(parts[1])
		if errM == nil && errD == nil {
			t := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location())
			// time.Date normalises out-of-range values; reject those instead.
			if int(t.Month()) == month && t.Day() == day {
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD, MM-DD, today or yesterday)", arg)
}

// DateFilter builds a predicate over bucket names from a command line
// argument. An empty argument matches everything and yields a nil filter.
// Arguments containing glob characters ("2024-01-*", "2024-0[1-3]-??") are
// matched as patterns, everything else goes through ParseDateArg.
func DateFilter(arg string, now time.Time) (func(date string) bool, error) {
	if arg == "" {
		return nil, nil
	}
	if strings.ContainsAny(arg, "*?[{") {
		g, err := glob.Compile(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid date pattern %q: %w", arg, err)
		}
		return g.Match, nil
	}
	t, err := ParseDateArg(arg, now)
	if err != nil {
		return nil, err
	}
	want := BucketName(t)
	return func(date string) bool { return date == want }, nil
}

// StartOfDay returns 00:00:00 of the same day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

package services

import (
	"testing"
	"time"
)

func TestQuarterAt(t *testing.T) {
	svc := NewSchoolYearService(time.June)

	cases := []struct {
		date    time.Time
		year    string
		quarter int
	}{
		{time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), "2026-2027", 1},
		{time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), "2026-2027", 1},
		{time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), "2026-2027", 2},
		{time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC), "2026-2027", 3},
		{time.Date(2027, 3, 10, 0, 0, 0, 0, time.UTC), "2026-2027", 4},
		{time.Date(2027, 5, 31, 0, 0, 0, 0, time.UTC), "2026-2027", 4},
	}
	for _, tc := range cases {
		q := svc.QuarterAt(tc.date)
		if q.SchoolYear != tc.year || q.Quarter != tc.quarter {
			t.Fatalf("%s: expected %s Q%d, got %s Q%d", tc.date.Format("2006-01-02"), tc.year, tc.quarter, q.SchoolYear, q.Quarter)
		}
		if tc.date.Before(q.StartsOn) || tc.date.After(q.EndsOn) {
			t.Fatalf("%s outside quarter bounds %s..%s", tc.date.Format("2006-01-02"), q.StartsOn, q.EndsOn)
		}
	}
}

func TestActiveQuarterUsesClock(t *testing.T) {
	svc := NewSchoolYearService(time.January)
	svc.now = func() time.Time { return time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC) }

	if q := svc.ActiveQuarter(); q.Quarter != 3 || q.SchoolYear != "2026-2027" {
		t.Fatalf("unexpected quarter: %+v", q)
	}
}

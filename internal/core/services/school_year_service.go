package services

import (
	"fmt"
	"time"
)

// ActiveQuarter describes the current position in the school year
type ActiveQuarter struct {
	SchoolYear string    `json:"school_year"`
	Quarter    int       `json:"quarter"`
	StartsOn   time.Time `json:"starts_on"`
	EndsOn     time.Time `json:"ends_on"`
}

// SchoolYearService computes school calendar values from the configured start month.
// The year is split into four three-month quarters.
type SchoolYearService struct {
	startMonth time.Month
	now        func() time.Time
}

// NewSchoolYearService creates a new school year service
func NewSchoolYearService(startMonth time.Month) *SchoolYearService {
	if startMonth < time.January || startMonth > time.December {
		startMonth = time.June
	}
	return &SchoolYearService{startMonth: startMonth, now: time.Now}
}

// ActiveQuarter returns the quarter containing the current date
func (s *SchoolYearService) ActiveQuarter() *ActiveQuarter {
	return s.QuarterAt(s.now())
}

// QuarterAt returns the quarter containing t
func (s *SchoolYearService) QuarterAt(t time.Time) *ActiveQuarter {
	startYear := t.Year()
	if t.Month() < s.startMonth {
		startYear--
	}

	offset := (int(t.Month()) - int(s.startMonth) + 12) % 12
	quarter := offset/3 + 1

	start := time.Date(startYear, s.startMonth, 1, 0, 0, 0, 0, t.Location()).AddDate(0, (quarter-1)*3, 0)
	end := start.AddDate(0, 3, -1)

	return &ActiveQuarter{
		SchoolYear: fmt.Sprintf("%d-%d", startYear, startYear+1),
		Quarter:    quarter,
		StartsOn:   start,
		EndsOn:     end,
	}
}

package family

import (
	"slices"
	"time"

	"github.com/dukerupert/lineage/internal/model"
)

// DefaultBirthdayWindow is how many days ahead UpcomingBirthdays looks.
const DefaultBirthdayWindow = 5

// UpcomingBirthday is a birthday falling inside the scan window.
type UpcomingBirthday struct {
	MemberID   int64      `json:"member_id"`
	Date       model.Date `json:"date"`
	DaysUntil  int        `json:"days_until"`
	TurningAge int        `json:"turning_age"`
}

// Today returns the calendar date of now in now's location.
func Today(now time.Time) model.Date {
	return model.DateOf(now)
}

// UpcomingBirthdays returns the members whose next birthday falls within
// windowDays of today, inclusive, soonest first. A birthday already past this
// year counts from next year. February 29 rolls over to March 1 in years
// without one.
func (s *Snapshot) UpcomingBirthdays(today model.Date, windowDays int) []UpcomingBirthday {
	start := today.Time()

	var out []UpcomingBirthday
	for _, m := range s.members {
		if m.BirthDate == nil || m.BirthDate.IsZero() {
			continue
		}
		b := *m.BirthDate

		next := time.Date(today.Year, b.Month, b.Day, 0, 0, 0, 0, time.UTC)
		if next.Before(start) {
			next = time.Date(today.Year+1, b.Month, b.Day, 0, 0, 0, 0, time.UTC)
		}

		days := int(next.Sub(start).Hours() / 24)
		if days < 0 || days > windowDays {
			continue
		}
		out = append(out, UpcomingBirthday{
			MemberID:   m.ID,
			Date:       model.DateOf(next),
			DaysUntil:  days,
			TurningAge: next.Year() - b.Year,
		})
	}

	slices.SortStableFunc(out, func(a, b UpcomingBirthday) int {
		return a.DaysUntil - b.DaysUntil
	})
	return out
}

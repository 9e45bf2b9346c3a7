// Package sla computes resolution deadlines from ticket priority using
// business-day arithmetic (Monday to Friday, no holiday calendar).
package sla

import (
	"time"

	"github.com/spec-kit/facility-desk/internal/domain"
	apperrors "github.com/spec-kit/facility-desk/pkg/util/errorutil"
)

var businessDays = map[domain.TicketPriority]int{
	domain.TicketPriorityUrgent: 1,
	domain.TicketPriorityHigh:   3,
	domain.TicketPriorityMedium: 5,
	domain.TicketPriorityLow:    10,
}

// BusinessDays returns the business-day offset for priority.
func BusinessDays(priority domain.TicketPriority) (int, error) {
	days, ok := businessDays[priority]
	if !ok {
		return 0, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}
	return days, nil
}

// AddBusinessDays moves t forward by n weekdays, keeping the time of day.
// A start on a weekend counts the following Monday as the first business day.
func AddBusinessDays(t time.Time, n int) time.Time {
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		if !isWeekend(t) {
			n--
		}
	}
	return t
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Calculator evaluates weekdays in a fixed business time zone.
type Calculator struct {
	Location *time.Location
}

// NewCalculator returns a calculator for loc; nil means UTC.
func NewCalculator(loc *time.Location) Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return Calculator{Location: loc}
}

// Deadline returns createdAt plus the priority's business-day offset. The
// result depends only on its arguments.
func (c Calculator) Deadline(createdAt time.Time, priority domain.TicketPriority) (time.Time, error) {
	days, err := BusinessDays(priority)
	if err != nil {
		return time.Time{}, err
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return AddBusinessDays(createdAt.In(loc), days).UTC(), nil
}

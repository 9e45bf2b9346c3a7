package sla_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/facility-desk/internal/domain"
	"github.com/spec-kit/facility-desk/internal/sla"
	apperrors "github.com/spec-kit/facility-desk/pkg/util/errorutil"
)

// 2025-01-15 is a Wednesday.
var wednesday = time.Date(2025, time.January, 15, 10, 30, 0, 0, time.UTC)

func TestDeadline_MediumOnWednesdayLandsNextWednesday(t *testing.T) {
	calc := sla.NewCalculator(nil)

	deadline, err := calc.Deadline(wednesday, domain.TicketPriorityMedium)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, time.January, 22, 10, 30, 0, 0, time.UTC), deadline)
	assert.Equal(t, time.Wednesday, deadline.Weekday())
}

func TestDeadline_PerPriority(t *testing.T) {
	calc := sla.NewCalculator(nil)
	cases := []struct {
		priority domain.TicketPriority
		want     time.Time
	}{
		{domain.TicketPriorityUrgent, time.Date(2025, time.January, 16, 10, 30, 0, 0, time.UTC)},
		{domain.TicketPriorityHigh, time.Date(2025, time.January, 20, 10, 30, 0, 0, time.UTC)},
		{domain.TicketPriorityMedium, time.Date(2025, time.January, 22, 10, 30, 0, 0, time.UTC)},
		{domain.TicketPriorityLow, time.Date(2025, time.January, 29, 10, 30, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(string(tc.priority), func(t *testing.T) {
			got, err := calc.Deadline(wednesday, tc.priority)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDeadline_MonotonicInPriorityOrder(t *testing.T) {
	calc := sla.NewCalculator(nil)
	order := []domain.TicketPriority{
		domain.TicketPriorityUrgent,
		domain.TicketPriorityHigh,
		domain.TicketPriorityMedium,
		domain.TicketPriorityLow,
	}
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	for day := 0; day < 14; day++ {
		createdAt := start.AddDate(0, 0, day).Add(7 * time.Hour)
		var prev time.Time
		for i, p := range order {
			got, err := calc.Deadline(createdAt, p)
			require.NoError(t, err)
			again, err := calc.Deadline(createdAt, p)
			require.NoError(t, err)
			assert.Equal(t, got, again, "deadline must be deterministic")
			if i > 0 {
				assert.True(t, got.After(prev), "%s should be later than previous priority for %s", p, createdAt)
			}
			prev = got
		}
	}
}

func TestAddBusinessDays_WeekendStart(t *testing.T) {
	saturday := time.Date(2025, time.January, 18, 9, 0, 0, 0, time.UTC)
	sunday := saturday.AddDate(0, 0, 1)

	assert.Equal(t, time.Date(2025, time.January, 20, 9, 0, 0, 0, time.UTC), sla.AddBusinessDays(saturday, 1))
	assert.Equal(t, time.Date(2025, time.January, 24, 9, 0, 0, 0, time.UTC), sla.AddBusinessDays(saturday, 5))
	assert.Equal(t, time.Date(2025, time.January, 24, 9, 0, 0, 0, time.UTC), sla.AddBusinessDays(sunday, 5))
}

func TestAddBusinessDays_FridayToMonday(t *testing.T) {
	friday := time.Date(2025, time.January, 17, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.January, 20, 18, 0, 0, 0, time.UTC), sla.AddBusinessDays(friday, 1))
}

func TestDeadline_UsesBusinessTimeZone(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	calc := sla.NewCalculator(loc)

	// Saturday 01:00 UTC is still Friday 22:00 in BRT, so one business day is Monday.
	createdAt := time.Date(2025, time.January, 18, 1, 0, 0, 0, time.UTC)
	got, err := calc.Deadline(createdAt, domain.TicketPriorityUrgent)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, time.January, 21, 1, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestDeadline_InvalidPriority(t *testing.T) {
	_, err := sla.NewCalculator(nil).Deadline(wednesday, domain.TicketPriority("WHENEVER"))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

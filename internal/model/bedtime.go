package model

import (
	"time"

	"github.com/lib/pq"
)

type BedtimeSettings struct {
	UserID      string        `db:"user_id" json:"userId"`
	IsEnabled   bool          `db:"is_enabled" json:"isEnabled"`
	StartTime   string        `db:"start_time" json:"startTime"` // "HH:mm"
	EndTime     string        `db:"end_time" json:"endTime"`     // "HH:mm"
	EnabledDays pq.Int64Array `db:"enabled_days" json:"enabledDays"` // 0=Sunday .. 6=Saturday
	UpdatedAt   time.Time     `db:"updated_at" json:"updatedAt"`
}

// DayEnabled reports whether bedtime applies on the given weekday.
func (b *BedtimeSettings) DayEnabled(day time.Weekday) bool {
	for _, d := range b.EnabledDays {
		if int(d) == int(day) {
			return true
		}
	}
	return false
}

// InWindow reports whether now falls inside the bedtime window in the
// given location. An overnight window (start > end, e.g. 22:00-08:00)
// matches when now >= start or now < end; a same-day window matches when
// start <= now < end.
func (b *BedtimeSettings) InWindow(now time.Time, loc *time.Location) bool {
	if !b.IsEnabled {
		return false
	}
	local := now.In(loc)

	start, ok := parseClock(b.StartTime)
	if !ok {
		return false
	}
	end, ok := parseClock(b.EndTime)
	if !ok {
		return false
	}

	minutes := local.Hour()*60 + local.Minute()

	if start > end {
		// Overnight wrap. The applicable weekday is the one the window
		// started on, so before midnight check today, after midnight the
		// previous day.
		if minutes >= start {
			return b.DayEnabled(local.Weekday())
		}
		if minutes < end {
			return b.DayEnabled(local.AddDate(0, 0, -1).Weekday())
		}
		return false
	}

	return minutes >= start && minutes < end && b.DayEnabled(local.Weekday())
}

func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// Package rollover decides, at session start, whether a monthly summary
// reminder is owed.
package rollover

import (
	"time"

	"uscite/internal/core"
)

// State is the reminder state computed once per session start.
type State string

const (
	NoReminder      State = "no_reminder"
	ReminderPending State = "reminder_pending"
)

// Detect compares the last-sent marker against the current month.
//
// The marker records the month in which a send last occurred, not the month
// it summarized, so a single inequality covers every crossed boundary:
//
//   - absent marker: first-ever use, nothing owed yet; the first summary is
//     offered only after the next rollover.
//   - marker == current month: already sent this month, up to date.
//   - anything else: a month boundary was crossed since the last confirmed
//     send.
//
// When more than one boundary was crossed only a single reminder fires; the
// dispatcher lets the caller pick the target month, defaulting to the most
// recently completed one.
func Detect(last core.MonthKey, hasLast bool, now time.Time) State {
	if !hasLast {
		return NoReminder
	}
	if last == core.MonthKeyOf(now) {
		return NoReminder
	}
	return ReminderPending
}
